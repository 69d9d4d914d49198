package gateways

import (
	"strconv"
	"sync"
	"time"

	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/gateways/observe"
)

// Selector decides which queued message is dispatched next.
//
// Selection favours groups that have already started: a message of a started
// group always outranks a message of a group not seen yet, and among started
// groups the one that started first wins. Within a group, queue order is kept.
// When no started group has a queued message, the head of the queue opens a
// new group, which becomes the lowest-priority started group.
//
// Selector state (started, cancelled and terminated groups) is kept for the
// lifetime of the Selector. Methods are safe for concurrent use.
type Selector struct {
	mu      sync.Mutex
	kind    Policy
	policy  policy
	started []int
	rank    map[int]int
	sink    observe.Sink
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithSelectorSink sets the sink receiving selection events.
func WithSelectorSink(s observe.Sink) SelectorOption {
	return func(sel *Selector) {
		if s != nil {
			sel.sink = s
		}
	}
}

// NewSelector creates a Selector applying the given policy.
func NewSelector(p Policy, opts ...SelectorOption) (*Selector, error) {
	pol, ok := newPolicy(p)
	if !ok {
		return nil, errorc.With(
			ErrInvalidArgument,
			errorc.String("", "unknown selector policy"),
			errorc.String("policy", strconv.Itoa(int(p))),
		)
	}
	s := &Selector{
		kind:   p,
		policy: pol,
		rank:   make(map[int]int),
		sink:   observe.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Policy returns the policy the Selector was created with.
func (s *Selector) Policy() Policy { return s.kind }

// SelectNext returns the next eligible message of q, or nil when none is left.
// The message is not removed from q.
//
// With PolicyCancellation, queued messages of cancelled groups are removed
// from q first. With PolicyTermination, selecting a message of a group whose
// termination message was already selected fails with a
// *TerminationViolationError.
func (s *Selector) SelectNext(q *Queue) (*Message, error) {
	if q == nil {
		return nil, errorc.With(ErrInvalidArgument, errorc.String("", "cannot select a message from a nil queue"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.policy.prepare(q, s.sink.Emit)

	m, err := s.pick(q)
	if err != nil || m == nil {
		return nil, err
	}
	if err = s.policy.admit(m, s.sink.Emit); err != nil {
		return nil, err
	}
	s.start(m.GroupID())
	return m, nil
}

// pick runs the base algorithm without mutating selector state.
func (s *Selector) pick(q *Queue) (*Message, error) {
	if q.Len() == 0 {
		return nil, nil
	}

	if len(s.started) > 0 {
		var (
			best     *Message
			bestRank = len(s.started)
		)
		for i, m := range q.items {
			if m == nil {
				return nil, errNilQueued(i)
			}
			r, ok := s.rank[m.GroupID()]
			if !ok || r >= bestRank {
				continue
			}
			best, bestRank = m, r
			if r == 0 {
				break
			}
		}
		if best != nil {
			return best, nil
		}
	}

	head := q.Head()
	if head == nil {
		return nil, errNilQueued(0)
	}
	return head, nil
}

// start records groupID as started if it was not already.
func (s *Selector) start(groupID int) {
	if _, ok := s.rank[groupID]; ok {
		return
	}
	s.rank[groupID] = len(s.started)
	s.started = append(s.started, groupID)
	s.sink.Emit(observe.Event{
		Kind:    observe.GroupStarted,
		Time:    time.Now(),
		GroupID: groupID,
		Gateway: observe.NoGateway,
	})
}

// CancelGroup makes every queued and future message of groupID ineligible.
// Cancelling an already cancelled group is a no-op. Only selectors created
// with PolicyCancellation support cancellation.
func (s *Selector) CancelGroup(groupID int) error {
	if groupID < 0 {
		return errorc.With(
			ErrInvalidArgument,
			errorc.String("", "invalid group id"),
			errorc.String("group_id", strconv.Itoa(groupID)),
		)
	}
	cp, ok := s.policy.(*cancelPolicy)
	if !ok {
		return errorc.With(
			ErrInvalidState,
			errorc.String("", "group cancellation is not supported"),
			errorc.String("policy", s.kind.String()),
		)
	}

	s.mu.Lock()
	added := cp.cancel(groupID)
	s.mu.Unlock()

	if added {
		s.sink.Emit(observe.Event{
			Kind:    observe.GroupCancelled,
			Time:    time.Now(),
			GroupID: groupID,
			Gateway: observe.NoGateway,
		})
	}
	return nil
}

// Started returns the started group ids in the order they started.
func (s *Selector) Started() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.started))
	copy(out, s.started)
	return out
}

// Cancelled returns the cancelled group ids in ascending order.
func (s *Selector) Cancelled() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp, ok := s.policy.(*cancelPolicy); ok {
		return cp.groups()
	}
	return nil
}

// Terminated returns the terminated group ids in ascending order.
func (s *Selector) Terminated() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tp, ok := s.policy.(*terminationPolicy); ok {
		return tp.groups()
	}
	return nil
}

func (s *Selector) acceptsTermination() bool { return s.policy.acceptsTermination() }

func errNilQueued(pos int) error {
	return errorc.With(
		ErrInvalidArgument,
		errorc.String("", "found nil message in queue"),
		errorc.String("position", strconv.Itoa(pos)),
	)
}
