package gateways

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/gateways/observe"
)

// Handler is the processing effect a Gateway applies to a message before
// completing it. A nil Handler completes messages without side effects.
type Handler func(ctx context.Context, m *Message) error

// Consumer receives the messages a Gateway has completed.
type Consumer interface {
	// RecordCompleted is called once per completed message.
	RecordCompleted(m *Message) error

	// AcceptsTermination reports whether termination messages may be routed
	// to gateways feeding this consumer.
	AcceptsTermination() bool
}

// FailureRecorder is an optional Consumer extension notified when a message
// could not be processed. err carries the message metadata (see MessageMetaError).
type FailureRecorder interface {
	RecordFailed(m *Message, err error)
}

// completion is the one-shot signal a Gateway sends when an assignment is done.
// By the time it is sent the gateway is available again.
type completion struct {
	gateway int
	seq     int
	msg     *Message
	err     error
}

// Gateway is a single processing slot. It holds at most one message at a time
// and is unavailable from assignment until processing finishes.
type Gateway struct {
	index    int
	consumer Consumer
	handler  Handler
	sink     observe.Sink

	mu      sync.Mutex
	busy    bool
	current *Message
	seq     int
	notify  chan<- completion
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayHandler sets the processing effect.
func WithGatewayHandler(h Handler) GatewayOption {
	return func(g *Gateway) { g.handler = h }
}

// WithGatewaySink sets the sink receiving completion events.
func WithGatewaySink(s observe.Sink) GatewayOption {
	return func(g *Gateway) {
		if s != nil {
			g.sink = s
		}
	}
}

// NewGateway creates a gateway reporting to c.
func NewGateway(index int, c Consumer, opts ...GatewayOption) (*Gateway, error) {
	if c == nil {
		return nil, errorc.With(ErrInvalidArgument, errorc.String("", "cannot create a gateway with a nil consumer"))
	}
	g := &Gateway{index: index, consumer: c, sink: observe.Nop{}, seq: -1}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Index returns the position of the gateway in its pool.
func (g *Gateway) Index() int { return g.index }

// Available reports whether the gateway can accept a message.
func (g *Gateway) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.busy
}

// Current returns the message being processed, or nil.
func (g *Gateway) Current() *Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Assign hands m to the gateway. Call Process to run it.
func (g *Gateway) Assign(m *Message) error { return g.assign(m, -1, nil) }

func (g *Gateway) assign(m *Message, seq int, notify chan<- completion) error {
	switch {
	case m == nil:
		return errorc.With(ErrInvalidArgument, errorc.String("", "cannot process a nil message"))
	case m.IsCompleted():
		return errorc.With(
			ErrInvalidArgument,
			errorc.String("", "message already processed"),
			errorc.String("message_id", m.ID()),
		)
	case m.IsTermination() && !g.consumer.AcceptsTermination():
		return errorc.With(
			ErrUnsupportedMessage,
			errorc.String("", "termination messages are not accepted by this gateway"),
			errorc.String("group_id", strconv.Itoa(m.GroupID())),
		)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return errorc.With(
			ErrInvalidState,
			errorc.String("", "gateway is busy"),
			errorc.String("gateway", strconv.Itoa(g.index)),
		)
	}
	g.busy = true
	g.current = m
	g.seq = seq
	g.notify = notify
	return nil
}

// Process runs the handler on the assigned message, marks it completed and
// reports it to the consumer, then makes the gateway available again.
// When the handler fails the message stays uncompleted, and the error, tagged
// with the message metadata, goes to the consumer if it is a FailureRecorder
// and is returned.
func (g *Gateway) Process(ctx context.Context) error {
	g.mu.Lock()
	m, seq, notify := g.current, g.seq, g.notify
	g.mu.Unlock()
	if m == nil {
		return errorc.With(
			ErrInvalidState,
			errorc.String("", "no message assigned"),
			errorc.String("gateway", strconv.Itoa(g.index)),
		)
	}

	start := time.Now()
	err := runHandler(ctx, g.handler, m)
	if err == nil {
		err = m.MarkCompleted()
	}
	if err == nil {
		err = g.consumer.RecordCompleted(m)
	}
	elapsed := time.Since(start)

	if err != nil {
		err = newMessageTaggedError(err, m, seq)
		if fr, ok := g.consumer.(FailureRecorder); ok {
			fr.RecordFailed(m, err)
		}
	}
	g.emit(m, elapsed, err)
	g.release()

	if notify != nil {
		notify <- completion{gateway: g.index, seq: seq, msg: m, err: err}
	}
	return err
}

func (g *Gateway) release() {
	g.mu.Lock()
	g.busy = false
	g.current = nil
	g.seq = -1
	g.notify = nil
	g.mu.Unlock()
}

func (g *Gateway) emit(m *Message, d time.Duration, err error) {
	kind := observe.MessageCompleted
	if err != nil {
		kind = observe.MessageFailed
	}
	g.sink.Emit(observe.Event{
		Kind:      kind,
		Time:      time.Now(),
		GroupID:   m.GroupID(),
		MessageID: m.ID(),
		Gateway:   g.index,
		Duration:  d,
		Err:       err,
	})
}

// runHandler executes h with panic recovery, returning early when ctx is done.
func runHandler(ctx context.Context, h Handler, m *Message) error {
	if h == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("%w: %v", ErrHandlerPanicked, p)
			}
		}()
		done <- h(ctx, m)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrHandlerCancelled, ctx.Err())
	case err := <-done:
		return err
	}
}
