package gateways

// Completion ordering
//
// Responsibility:
// - Append completed messages to the Dispatcher's completed collection in
//   dispatch order, even when gateways finish out of order.
// - Advance past assignments that failed, so later completions can flow.
//
// Inputs:
// - completionEvent values pushed by the Dispatcher's consumer callbacks
//   (RecordCompleted and RecordFailed). Each carries:
//     - seq: the dispatch sequence number assigned when the message was handed
//       to a gateway,
//     - msg: the completed message (when present == true),
//     - present: false when processing failed and nothing is recorded.
//
// Semantics:
// - present == true stores msg under seq; present == false remembers seq as a gap.
// - After each push, the cursor flushes while either a stored message exists at
//   the cursor (emit, advance) or a gap is remembered there (advance).
// - Sequence numbers increase for the lifetime of a Dispatcher and are never
//   reused; each one is pushed exactly once.
//
// Concurrency:
// - The reorderer holds no lock. The Dispatcher pushes under its collection
//   mutex, so emission and appends to the completed collection are serialized.
//
// WithCompletionOrder disables the reorderer; messages are then recorded in the
// order gateways signal completion.

// completionEvent is a gateway completion seen by the reorderer.
type completionEvent struct {
	seq     int
	msg     *Message
	present bool
}
