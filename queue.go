package gateways

// Queue is an ordered sequence of messages awaiting selection.
// Insertion order is arrival order. Queue is not safe for concurrent use;
// a Dispatcher mutates its queue from the dispatching goroutine only.
type Queue struct {
	items []*Message
}

// NewQueue returns a queue holding msgs in order. Elements are not validated.
func NewQueue(msgs ...*Message) *Queue {
	q := &Queue{items: make([]*Message, 0, len(msgs))}
	q.items = append(q.items, msgs...)
	return q
}

// Len returns the number of queued messages.
func (q *Queue) Len() int { return len(q.items) }

// Push appends msgs to the tail of the queue.
func (q *Queue) Push(msgs ...*Message) { q.items = append(q.items, msgs...) }

// Head returns the first queued message, or nil when the queue is empty.
func (q *Queue) Head() *Message {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Remove deletes the first occurrence of m and reports whether it was found.
func (q *Queue) Remove(m *Message) bool {
	for i, el := range q.items {
		if el == m {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// removeIf deletes every message matching fn, keeping the relative order of
// the rest, and returns the removed messages.
func (q *Queue) removeIf(fn func(*Message) bool) []*Message {
	var removed []*Message
	kept := q.items[:0]
	for _, m := range q.items {
		if m != nil && fn(m) {
			removed = append(removed, m)
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	return removed
}

// Messages returns a copy of the queued messages in order.
func (q *Queue) Messages() []*Message {
	out := make([]*Message, len(q.items))
	copy(out, q.items)
	return out
}
