package gateways

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/ygrebnov/errorc"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ygrebnov/gateways/observe"
	"github.com/ygrebnov/gateways/pool"
)

// Dispatcher routes batches of messages to a fixed pool of gateways, one
// message per gateway at a time, choosing messages with a group-fair Selector.
//
// Dispatcher is a concrete struct; methods are safe for concurrent use.
// Dispatch calls are serialized: a call waits for a running one to return.
type Dispatcher struct {
	// noCopy prevents accidental copying of the controller.
	//go:nocopy
	nc noCopy

	config   *config
	selector *Selector
	pool     pool.Pool[*Gateway]
	limiter  *rate.Limiter
	sink     observe.Sink

	// completions carries one signal per assignment; sized to the pool so a
	// gateway never blocks on it.
	completions chan completion

	// dispatchMu serializes Dispatch and guards queue.
	dispatchMu sync.Mutex
	queue      *Queue

	// mu guards the completed collection and in-flight bookkeeping.
	mu        sync.Mutex
	completed []*Message
	inflight  map[*Message]int
	order     *reorderer
	failures  []error
	seq       int
}

// noCopy is a vet-recognized marker to discourage copying types with this field embedded.
// It works with the "-copylocks" analyzer via the presence of Lock/Unlock methods.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// New creates a Dispatcher owning numberOfGateways gateways.
func New(numberOfGateways int, opts ...Option) (*Dispatcher, error) {
	if numberOfGateways <= 0 {
		return nil, errorc.With(
			ErrInvalidArgument,
			errorc.String("", "number of gateways must be positive"),
			errorc.String("gateways", strconv.Itoa(numberOfGateways)),
		)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		config:      &cfg,
		sink:        newMeteredSink(cfg.Sink, cfg.Metrics),
		completions: make(chan completion, numberOfGateways),
		queue:       NewQueue(),
		inflight:    make(map[*Message]int),
	}

	sel, err := NewSelector(cfg.Policy, WithSelectorSink(d.sink))
	if err != nil {
		return nil, err
	}
	d.selector = sel

	p, err := pool.NewFixed(uint(numberOfGateways), func(i int) (*Gateway, error) {
		return NewGateway(i, d, WithGatewayHandler(cfg.Handler), WithGatewaySink(d.sink))
	})
	if err != nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", err.Error()))
	}
	d.pool = p

	if cfg.RateLimit > 0 {
		d.limiter = rate.NewLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.PreserveOrder {
		d.order = newReorderer(func(m *Message) { d.completed = append(d.completed, m) })
	}
	return d, nil
}

// Dispatch appends batch to the pending queue and drains it through the gateways.
//
// Semantics:
//   - A nil context, a nil batch, a nil element, an already completed or
//     duplicate message fail with ErrInvalidArgument; a termination message on
//     a dispatcher without the termination policy fails with
//     ErrUnsupportedMessage. In both cases nothing is admitted.
//   - An empty batch is a no-op.
//   - Dispatch returns when no eligible message is left and no gateway is busy.
//   - A termination violation stops selection: messages already assigned still
//     complete, the offending message is discarded and reported in the returned
//     *TerminationViolationError, and the rest of the queue is kept for the next call.
//   - When ctx is done selection stops, in-flight messages finish or are cancelled,
//     and ctx.Err() is returned. Unselected messages stay queued.
//   - Handler failures do not stop the drain; they are joined into the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []*Message) error {
	if ctx == nil {
		return errorc.With(ErrInvalidArgument, errorc.String("", "cannot dispatch with a nil context"))
	}
	if batch == nil {
		return errorc.With(ErrInvalidArgument, errorc.String("", "cannot dispatch a nil batch"))
	}

	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()

	if err := d.admit(batch); err != nil {
		return err
	}
	if len(batch) == 0 {
		d.emit(observe.Event{Kind: observe.BatchEmpty, GroupID: observe.NoGroup, Gateway: observe.NoGateway})
		return nil
	}

	d.queue.Push(batch...)
	d.emit(observe.Event{
		Kind:    observe.BatchAccepted,
		GroupID: observe.NoGroup,
		Gateway: observe.NoGateway,
		Count:   len(batch),
	})

	stopErr, processErr := d.drain(ctx)
	failures := d.takeFailures()
	if len(failures) == 0 && processErr != nil {
		// Failures normally arrive through RecordFailed; keep Process's own
		// report when none did.
		failures = []error{processErr}
	}

	d.emit(observe.Event{
		Kind:    observe.DispatchFinished,
		GroupID: observe.NoGroup,
		Gateway: observe.NoGateway,
		Count:   d.queue.Len(),
		Err:     stopErr,
	})

	switch {
	case len(failures) == 0:
		return stopErr
	case stopErr == nil:
		return errors.Join(failures...)
	default:
		return errors.Join(append([]error{stopErr}, failures...)...)
	}
}

// admit validates batch against itself and the current queue without mutating anything.
func (d *Dispatcher) admit(batch []*Message) error {
	seen := make(map[*Message]struct{}, len(batch)+d.queue.Len())
	for _, m := range d.queue.items {
		seen[m] = struct{}{}
	}

	for i, m := range batch {
		switch {
		case m == nil:
			return errorc.With(
				ErrInvalidArgument,
				errorc.String("", "batch contains a nil message"),
				errorc.String("position", strconv.Itoa(i)),
			)
		case m.IsCompleted():
			return errorc.With(
				ErrInvalidArgument,
				errorc.String("", "message already processed"),
				errorc.String("message_id", m.ID()),
			)
		case m.IsTermination() && !d.selector.acceptsTermination():
			return errorc.With(
				ErrUnsupportedMessage,
				errorc.String("", "termination messages require the termination policy"),
				errorc.String("message_id", m.ID()),
			)
		}
		if _, dup := seen[m]; dup {
			return errorc.With(
				ErrInvalidArgument,
				errorc.String("", "message is already pending"),
				errorc.String("message_id", m.ID()),
			)
		}
		seen[m] = struct{}{}
	}
	return nil
}

// drain fills available gateways until nothing is selectable, waiting for
// completions whenever no gateway is free. After all in-flight messages
// finished it returns the error that stopped selection, if any, and the first
// processing error.
func (d *Dispatcher) drain(ctx context.Context) (stopErr, processErr error) {
	var (
		g        errgroup.Group
		inflight int
	)

	for {
		if stopErr == nil {
			stopErr = d.fill(ctx, &g, &inflight)
		}
		if inflight == 0 {
			break
		}
		<-d.completions
		inflight--
	}

	return stopErr, g.Wait()
}

// fill assigns one message to every available gateway, in pool order, while
// the queue has eligible messages.
func (d *Dispatcher) fill(ctx context.Context, g *errgroup.Group, inflight *int) error {
	var err error
	d.pool.Each(func(_ int, gw *Gateway) bool {
		if d.queue.Len() == 0 {
			return false
		}
		if !gw.Available() {
			return true
		}
		if err = ctx.Err(); err != nil {
			return false
		}

		// SelectNext commits selector state, so pacing happens first.
		if d.limiter != nil {
			if err = d.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				return false
			}
		}

		var m *Message
		m, err = d.selector.SelectNext(d.queue)
		if err != nil {
			var tv *TerminationViolationError
			if errors.As(err, &tv) && tv.msg != nil {
				d.queue.Remove(tv.msg)
			}
			return false
		}
		if m == nil {
			return false
		}

		d.queue.Remove(m)
		seq := d.track(m)
		if err = gw.assign(m, seq, d.completions); err != nil {
			d.RecordFailed(m, newMessageTaggedError(err, m, seq))
			err = nil
			return true
		}

		*inflight++
		d.emit(observe.Event{
			Kind:      observe.MessageAssigned,
			GroupID:   m.GroupID(),
			MessageID: m.ID(),
			Gateway:   gw.Index(),
		})
		g.Go(func() error { return gw.Process(ctx) })
		return true
	})
	return err
}

// track assigns the next dispatch sequence number to m.
func (d *Dispatcher) track(m *Message) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	seq := d.seq
	d.seq++
	d.inflight[m] = seq
	return seq
}

// RecordCompleted records a completed message. It is called by the
// dispatcher's gateways; in-flight messages are recorded in dispatch order
// unless WithCompletionOrder is set. Messages not dispatched by this
// Dispatcher are appended as-is.
func (d *Dispatcher) RecordCompleted(m *Message) error {
	if m == nil {
		return errorc.With(ErrInvalidArgument, errorc.String("", "cannot record a nil message"))
	}
	if !m.IsCompleted() {
		return errorc.With(
			ErrInvalidArgument,
			errorc.String("", "cannot record an uncompleted message"),
			errorc.String("message_id", m.ID()),
		)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	seq, ok := d.inflight[m]
	if !ok {
		d.completed = append(d.completed, m)
		return nil
	}
	delete(d.inflight, m)
	if d.order == nil {
		d.completed = append(d.completed, m)
		return nil
	}
	d.order.push(completionEvent{seq: seq, msg: m, present: true})
	return nil
}

// RecordFailed records a processing failure reported by a gateway.
// The failure is returned by the running Dispatch call.
func (d *Dispatcher) RecordFailed(m *Message, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seq, ok := d.inflight[m]; ok {
		delete(d.inflight, m)
		if d.order != nil {
			d.order.push(completionEvent{seq: seq})
		}
	}
	if err != nil {
		d.failures = append(d.failures, err)
	}
}

func (d *Dispatcher) takeFailures() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.failures
	d.failures = nil
	return out
}

// AcceptsTermination reports whether the dispatcher was created with WithTermination.
func (d *Dispatcher) AcceptsTermination() bool { return d.selector.acceptsTermination() }

// CancelGroup cancels groupID: its queued messages are dropped and later
// messages of the group are never dispatched. Messages already assigned to a
// gateway are not affected. Requires WithCancellation.
func (d *Dispatcher) CancelGroup(groupID int) error { return d.selector.CancelGroup(groupID) }

// Completed returns the messages recorded so far, across all Dispatch calls.
func (d *Dispatcher) Completed() []*Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Message, len(d.completed))
	copy(out, d.completed)
	return out
}

// Pending returns the messages left queued by previous Dispatch calls.
// It waits for a running Dispatch to return.
func (d *Dispatcher) Pending() []*Message {
	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()
	return d.queue.Messages()
}

// Gateways returns the number of gateways in the pool.
func (d *Dispatcher) Gateways() int { return d.pool.Len() }

// Selector returns the selector used by the dispatcher.
func (d *Dispatcher) Selector() *Selector { return d.selector }

func (d *Dispatcher) emit(e observe.Event) {
	e.Time = time.Now()
	d.sink.Emit(e)
}
