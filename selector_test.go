package gateways

import (
	"errors"
	"reflect"
	"testing"
)

func mustMessages(t *testing.T, groups ...int) []*Message {
	t.Helper()
	out := make([]*Message, len(groups))
	for i, g := range groups {
		m, err := NewMessage(g)
		if err != nil {
			t.Fatalf("NewMessage(%d): %v", g, err)
		}
		out[i] = m
	}
	return out
}

func groupsOf(msgs []*Message) []int {
	out := make([]int, len(msgs))
	for i, m := range msgs {
		out[i] = m.GroupID()
	}
	return out
}

// drainSelector selects and removes messages until the selector returns nil.
func drainSelector(t *testing.T, s *Selector, q *Queue) []*Message {
	t.Helper()
	var out []*Message
	for i := 0; ; i++ {
		if i > 1000 {
			t.Fatalf("selector did not drain the queue")
		}
		m, err := s.SelectNext(q)
		if err != nil {
			t.Fatalf("SelectNext: %v", err)
		}
		if m == nil {
			return out
		}
		if !q.Remove(m) {
			t.Fatalf("selected message %v is not in the queue", m)
		}
		out = append(out, m)
	}
}

func TestSelector_BaseAlgorithm(t *testing.T) {
	tests := []struct {
		name   string
		groups []int
		want   []int
	}{
		{name: "groups arriving in order", groups: []int{3, 3, 3, 4, 4, 4}, want: []int{3, 3, 3, 4, 4, 4}},
		{name: "interleaved arrival", groups: []int{3, 5, 3, 4, 5, 4}, want: []int{3, 3, 5, 5, 4, 4}},
		{name: "same group", groups: []int{3, 3, 3, 3}, want: []int{3, 3, 3, 3}},
		{name: "started groups before new ones", groups: []int{4, 1, 3, 1, 3, 1}, want: []int{4, 1, 1, 1, 3, 3}},
		{name: "single message", groups: []int{0}, want: []int{0}},
		{name: "empty queue", groups: nil, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSelector(PolicyNone)
			if err != nil {
				t.Fatalf("NewSelector: %v", err)
			}
			got := groupsOf(drainSelector(t, s, NewQueue(mustMessages(t, tt.groups...)...)))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("selection order = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestSelector_SelectsEveryMessageExactlyOnce(t *testing.T) {
	groups := []int{7, 2, 9, 2, 7, 1, 9, 9, 0, 1, 2, 7}
	msgs := mustMessages(t, groups...)
	s, _ := NewSelector(PolicyNone)
	q := NewQueue(msgs...)

	seen := make(map[*Message]int)
	started := make(map[int]bool)
	for {
		// Every group with a queued message that already started must win over new groups.
		pendingStarted := false
		for _, m := range q.Messages() {
			if started[m.GroupID()] {
				pendingStarted = true
				break
			}
		}

		m, err := s.SelectNext(q)
		if err != nil {
			t.Fatalf("SelectNext: %v", err)
		}
		if m == nil {
			break
		}
		if pendingStarted && !started[m.GroupID()] {
			t.Fatalf("selected new group %d while a started group had pending messages", m.GroupID())
		}
		started[m.GroupID()] = true
		seen[m]++
		q.Remove(m)
	}

	if len(seen) != len(msgs) {
		t.Fatalf("selected %d distinct messages; want %d", len(seen), len(msgs))
	}
	for m, n := range seen {
		if n != 1 {
			t.Fatalf("message %v selected %d times", m, n)
		}
	}
}

func TestSelector_KeepsStateAcrossQueues(t *testing.T) {
	s, _ := NewSelector(PolicyNone)
	first := mustMessages(t, 5, 6)
	drainSelector(t, s, NewQueue(first...))

	// 6 started after 5, so it ranks lower even though it arrives first now.
	got := groupsOf(drainSelector(t, s, NewQueue(mustMessages(t, 8, 6, 5)...)))
	if want := []int{5, 6, 8}; !reflect.DeepEqual(got, want) {
		t.Fatalf("selection order = %v; want %v", got, want)
	}
	if want := []int{5, 6, 8}; !reflect.DeepEqual(s.Started(), want) {
		t.Fatalf("Started() = %v; want %v", s.Started(), want)
	}
}

func TestSelector_InvalidInput(t *testing.T) {
	s, _ := NewSelector(PolicyNone)

	if _, err := s.SelectNext(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("SelectNext(nil) error = %v; want ErrInvalidArgument", err)
	}

	msgs := mustMessages(t, 5, 6)
	q := NewQueue(msgs[0], msgs[1], nil, msgs[0])
	if _, err := s.SelectNext(q); err != nil {
		t.Fatalf("first SelectNext: %v", err)
	}
	q.Remove(msgs[0])
	// started = [5]; the scan for group 5 reaches the nil element.
	if _, err := s.SelectNext(q); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("SelectNext with nil element error = %v; want ErrInvalidArgument", err)
	}

	s2, _ := NewSelector(PolicyNone)
	if _, err := s2.SelectNext(NewQueue(nil, msgs[1])); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("SelectNext with nil head error = %v; want ErrInvalidArgument", err)
	}

	if _, err := NewSelector(Policy(42)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("NewSelector(42) error = %v; want ErrInvalidArgument", err)
	}
}

func TestSelector_Cancellation(t *testing.T) {
	t.Run("cancel after group started", func(t *testing.T) {
		s, _ := NewSelector(PolicyCancellation)
		msgs := mustMessages(t, 1, 1, 1, 8)
		q := NewQueue(msgs...)

		m, err := s.SelectNext(q)
		if err != nil || m != msgs[0] {
			t.Fatalf("SelectNext = %v, %v; want first group 1 message", m, err)
		}
		if err = s.CancelGroup(1); err != nil {
			t.Fatalf("CancelGroup: %v", err)
		}
		m, err = s.SelectNext(q)
		if err != nil || m != msgs[3] {
			t.Fatalf("SelectNext = %v, %v; want group 8 message", m, err)
		}
		if q.Len() != 1 {
			t.Fatalf("queue length = %d; want 1 (cancelled messages purged)", q.Len())
		}
	})

	t.Run("cancel before arrival", func(t *testing.T) {
		s, _ := NewSelector(PolicyCancellation)
		if err := s.CancelGroup(1); err != nil {
			t.Fatalf("CancelGroup: %v", err)
		}
		got := groupsOf(drainSelector(t, s, NewQueue(mustMessages(t, 1, 1, 3, 8)...)))
		if want := []int{3, 8}; !reflect.DeepEqual(got, want) {
			t.Fatalf("selection order = %v; want %v", got, want)
		}
	})

	t.Run("cancel group not queued", func(t *testing.T) {
		s, _ := NewSelector(PolicyCancellation)
		_ = s.CancelGroup(5)
		got := groupsOf(drainSelector(t, s, NewQueue(mustMessages(t, 1, 1, 3, 8)...)))
		if want := []int{1, 1, 3, 8}; !reflect.DeepEqual(got, want) {
			t.Fatalf("selection order = %v; want %v", got, want)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		s, _ := NewSelector(PolicyCancellation)
		for i := 0; i < 3; i++ {
			if err := s.CancelGroup(2); err != nil {
				t.Fatalf("CancelGroup #%d: %v", i, err)
			}
		}
		if got := s.Cancelled(); !reflect.DeepEqual(got, []int{2}) {
			t.Fatalf("Cancelled() = %v; want [2]", got)
		}
	})

	t.Run("invalid group", func(t *testing.T) {
		s, _ := NewSelector(PolicyCancellation)
		if err := s.CancelGroup(-10); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("CancelGroup(-10) error = %v; want ErrInvalidArgument", err)
		}
	})

	t.Run("unsupported policy", func(t *testing.T) {
		for _, p := range []Policy{PolicyNone, PolicyTermination} {
			s, _ := NewSelector(p)
			if err := s.CancelGroup(1); !errors.Is(err, ErrInvalidState) {
				t.Fatalf("%s: CancelGroup error = %v; want ErrInvalidState", p, err)
			}
		}
	})
}

func mustTermination(t *testing.T, group int) *Message {
	t.Helper()
	m, err := NewTerminationMessage(group)
	if err != nil {
		t.Fatalf("NewTerminationMessage(%d): %v", group, err)
	}
	return m
}

func TestSelector_Termination(t *testing.T) {
	t.Run("message after termination", func(t *testing.T) {
		s, _ := NewSelector(PolicyTermination)
		term := mustTermination(t, 2)
		msgs := mustMessages(t, 5, 2, 1, 5, 5)
		q := NewQueue(term, msgs[0], msgs[1], msgs[2], msgs[3], msgs[4])

		m, err := s.SelectNext(q)
		if err != nil || m != term {
			t.Fatalf("SelectNext = %v, %v; want termination message", m, err)
		}
		q.Remove(m)

		_, err = s.SelectNext(q)
		var tv *TerminationViolationError
		if !errors.As(err, &tv) {
			t.Fatalf("SelectNext error = %v; want *TerminationViolationError", err)
		}
		if tv.GroupID != 2 || tv.MessageID != msgs[1].ID() {
			t.Fatalf("violation = %+v; want group 2, message %s", tv, msgs[1].ID())
		}
		if !errors.Is(err, ErrTerminationViolation) {
			t.Fatalf("errors.Is(err, ErrTerminationViolation) = false")
		}
	})

	t.Run("termination message last in group", func(t *testing.T) {
		s, _ := NewSelector(PolicyTermination)
		msgs := mustMessages(t, 5, 1, 5, 5)
		term := mustTermination(t, 5)
		q := NewQueue(msgs[0], msgs[1], msgs[2], msgs[3], term)

		got := drainSelector(t, s, q)
		if want := []*Message{msgs[0], msgs[2], msgs[3], term, msgs[1]}; !reflect.DeepEqual(got, want) {
			t.Fatalf("selection = %v; want %v", got, want)
		}
		if !reflect.DeepEqual(s.Terminated(), []int{5}) {
			t.Fatalf("Terminated() = %v; want [5]", s.Terminated())
		}
	})

	t.Run("violation does not close other groups", func(t *testing.T) {
		s, _ := NewSelector(PolicyTermination)
		term := mustTermination(t, 2)
		late := mustMessages(t, 2, 3)
		q := NewQueue(term)
		drainSelector(t, s, q)

		q.Push(late[0])
		if _, err := s.SelectNext(q); !errors.Is(err, ErrTerminationViolation) {
			t.Fatalf("SelectNext error = %v; want ErrTerminationViolation", err)
		}
		q.Remove(late[0])
		q.Push(late[1])
		if m, err := s.SelectNext(q); err != nil || m != late[1] {
			t.Fatalf("SelectNext = %v, %v; want group 3 message", m, err)
		}
	})
}
