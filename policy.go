package gateways

import (
	"sort"
	"time"

	"github.com/ygrebnov/gateways/observe"
)

// Policy selects how a Selector narrows the group-fair base selection.
type Policy int

const (
	// PolicyNone applies the base group-fair algorithm only.
	PolicyNone Policy = iota
	// PolicyCancellation drops queued messages of cancelled groups before selecting.
	PolicyCancellation
	// PolicyTermination closes a group once its termination message is selected.
	PolicyTermination
)

func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicyCancellation:
		return "cancellation"
	case PolicyTermination:
		return "termination"
	default:
		return "unknown"
	}
}

// policy is the admissibility hook applied around the base algorithm.
// Implementations are guarded by the owning Selector's mutex.
type policy interface {
	// prepare runs before the base algorithm and may remove messages from q.
	prepare(q *Queue, emit func(observe.Event))
	// admit vets the candidate chosen by the base algorithm.
	admit(m *Message, emit func(observe.Event)) error
	// acceptsTermination reports whether termination messages may be dispatched.
	acceptsTermination() bool
}

func newPolicy(p Policy) (policy, bool) {
	switch p {
	case PolicyNone:
		return basePolicy{}, true
	case PolicyCancellation:
		return &cancelPolicy{cancelled: make(map[int]struct{})}, true
	case PolicyTermination:
		return &terminationPolicy{terminated: make(map[int]struct{})}, true
	default:
		return nil, false
	}
}

type basePolicy struct{}

func (basePolicy) prepare(*Queue, func(observe.Event))       {}
func (basePolicy) admit(*Message, func(observe.Event)) error { return nil }
func (basePolicy) acceptsTermination() bool                  { return false }

type cancelPolicy struct {
	cancelled map[int]struct{}
}

// cancel adds groupID to the cancelled set and reports whether it was new.
func (p *cancelPolicy) cancel(groupID int) bool {
	if _, ok := p.cancelled[groupID]; ok {
		return false
	}
	p.cancelled[groupID] = struct{}{}
	return true
}

func (p *cancelPolicy) prepare(q *Queue, emit func(observe.Event)) {
	if len(p.cancelled) == 0 {
		return
	}
	removed := q.removeIf(func(m *Message) bool {
		_, ok := p.cancelled[m.GroupID()]
		return ok
	})
	if len(removed) == 0 {
		return
	}
	perGroup := make(map[int]int)
	order := make([]int, 0, 1)
	for _, m := range removed {
		if perGroup[m.GroupID()] == 0 {
			order = append(order, m.GroupID())
		}
		perGroup[m.GroupID()]++
	}
	now := time.Now()
	for _, g := range order {
		emit(observe.Event{
			Kind:    observe.MessagesDropped,
			Time:    now,
			GroupID: g,
			Gateway: observe.NoGateway,
			Count:   perGroup[g],
		})
	}
}

func (p *cancelPolicy) admit(*Message, func(observe.Event)) error { return nil }
func (p *cancelPolicy) acceptsTermination() bool                  { return false }

func (p *cancelPolicy) groups() []int { return sortedKeys(p.cancelled) }

type terminationPolicy struct {
	terminated map[int]struct{}
}

func (p *terminationPolicy) prepare(*Queue, func(observe.Event)) {}

func (p *terminationPolicy) admit(m *Message, emit func(observe.Event)) error {
	g := m.GroupID()
	if _, closed := p.terminated[g]; closed {
		err := &TerminationViolationError{GroupID: g, MessageID: m.ID(), msg: m}
		emit(observe.Event{
			Kind:      observe.TerminationViolation,
			Time:      time.Now(),
			GroupID:   g,
			MessageID: m.ID(),
			Gateway:   observe.NoGateway,
			Err:       err,
		})
		return err
	}
	if m.IsTermination() {
		p.terminated[g] = struct{}{}
		emit(observe.Event{
			Kind:      observe.GroupTerminated,
			Time:      time.Now(),
			GroupID:   g,
			MessageID: m.ID(),
			Gateway:   observe.NoGateway,
		})
	}
	return nil
}

func (p *terminationPolicy) acceptsTermination() bool { return true }

func (p *terminationPolicy) groups() []int { return sortedKeys(p.terminated) }

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
