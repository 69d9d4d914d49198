package gateways

import (
	"reflect"
	"testing"
)

func runReorderer(t *testing.T, events []completionEvent) []string {
	t.Helper()
	var out []string
	r := newReorderer(func(m *Message) { out = append(out, m.ID()) })
	for _, e := range events {
		r.push(e)
	}
	return out
}

func ev(seq int, id string, present bool) completionEvent {
	if !present {
		return completionEvent{seq: seq}
	}
	m, _ := NewMessage(0, WithMessageID(id))
	return completionEvent{seq: seq, msg: m, present: true}
}

func TestReorderer(t *testing.T) {
	tests := []struct {
		name   string
		events []completionEvent
		want   []string
	}{
		{
			name:   "in order",
			events: []completionEvent{ev(0, "a", true), ev(1, "b", true)},
			want:   []string{"a", "b"},
		},
		{
			name:   "out of order buffers then flushes",
			events: []completionEvent{ev(1, "b", true), ev(2, "c", true), ev(0, "a", true)},
			want:   []string{"a", "b", "c"},
		},
		{
			name:   "gap advances cursor",
			events: []completionEvent{ev(2, "c", true), ev(0, "a", true), ev(1, "", false)},
			want:   []string{"a", "c"},
		},
		{
			name:   "missing earlier sequence holds later ones",
			events: []completionEvent{ev(1, "b", true), ev(2, "c", true)},
			want:   nil,
		},
		{
			name:   "stale sequence ignored",
			events: []completionEvent{ev(0, "a", true), ev(0, "x", true), ev(1, "b", true)},
			want:   []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runReorderer(t, tt.events)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("emitted %v; want %v", got, tt.want)
			}
		})
	}
}

func TestReorderer_Pending(t *testing.T) {
	r := newReorderer(func(*Message) {})
	r.push(ev(2, "c", true))
	r.push(ev(1, "b", true))
	if r.pending() != 2 {
		t.Fatalf("pending() = %d; want 2", r.pending())
	}
	r.push(ev(0, "a", true))
	if r.pending() != 0 {
		t.Fatalf("pending() = %d; want 0", r.pending())
	}
}
