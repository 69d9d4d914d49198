package gateways

// reorderer emits completed messages strictly in dispatch sequence order.
// See completion_order.go for the contract.
type reorderer struct {
	next int
	buf  map[int]*Message
	gaps map[int]struct{}
	emit func(*Message)
}

func newReorderer(emit func(*Message)) *reorderer {
	return &reorderer{
		buf:  make(map[int]*Message),
		gaps: make(map[int]struct{}),
		emit: emit,
	}
}

// push records ev and flushes the contiguous prefix from the cursor.
func (r *reorderer) push(ev completionEvent) {
	if ev.seq < r.next {
		return
	}
	if ev.present {
		r.buf[ev.seq] = ev.msg
	} else {
		r.gaps[ev.seq] = struct{}{}
	}
	r.flushContiguous()
}

// flushContiguous emits consecutive messages and skips consecutive gaps
// starting from the cursor.
func (r *reorderer) flushContiguous() {
	for {
		if m, ok := r.buf[r.next]; ok {
			r.emit(m)
			delete(r.buf, r.next)
			r.next++
			continue
		}
		if _, ok := r.gaps[r.next]; ok {
			delete(r.gaps, r.next)
			r.next++
			continue
		}
		return
	}
}

// pending returns the number of messages held back by an earlier gap.
func (r *reorderer) pending() int { return len(r.buf) }
