package gateways

import "context"

// DispatchAll dispatches batch through a new Dispatcher configured by opts.
// It owns the Dispatcher for the single call and returns the messages it
// completed together with the Dispatch error.
//
// Semantics:
//   - Completed messages are in dispatch order unless WithCompletionOrder is set.
//   - Messages left pending by a termination violation or ctx cancellation are
//     not returned; inspect them with a long-lived Dispatcher instead.
func DispatchAll(ctx context.Context, numberOfGateways int, batch []*Message, opts ...Option) ([]*Message, error) {
	d, err := New(numberOfGateways, opts...)
	if err != nil {
		return nil, err
	}
	err = d.Dispatch(ctx, batch)
	return d.Completed(), err
}
