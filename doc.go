// Package gateways dispatches batches of grouped messages to a fixed pool of
// processing gateways while keeping groups fair: once a group has started, its
// messages are preferred over messages of groups not seen yet, and earlier
// started groups are preferred over later ones.
//
// Constructors
//   - New(n, opts...): a long-lived Dispatcher owning n gateways.
//   - DispatchAll(ctx, n, batch, opts...): one-shot helper for a single batch.
//   - NewSelector(policy, opts...): the selection algorithm on its own.
//
// Policies
//   - PolicyNone (default): the group-fair base selection.
//   - PolicyCancellation (WithCancellation): CancelGroup drops queued messages
//     of a group and ignores its later messages.
//   - PolicyTermination (WithTermination): a termination message closes its
//     group; any later message of that group aborts the dispatch with a
//     *TerminationViolationError.
//
// Defaults
// Unless overridden, the following defaults apply to a newly created Dispatcher:
//   - Policy: PolicyNone
//   - Handler: none (messages complete without side effects)
//   - Completed order: dispatch order (WithCompletionOrder switches to signal order)
//   - Sink: observe.Nop
//   - Metrics: metrics.NoopProvider
//   - Rate limit: none
//
// Concurrency
// Gateways process messages concurrently, each on its own goroutine. Selection
// itself runs on the goroutine calling Dispatch, so the sequence of selected
// messages does not depend on how long processing takes. Dispatch returns once
// every assigned message has finished.
//
// Errors
// All errors wrap one of the exported sentinels (ErrInvalidArgument,
// ErrInvalidState, ...) and can be matched with errors.Is. Processing failures
// carry message metadata, see MessageMetaError.
package gateways
