package pool

import "fmt"

type fixed[T any] struct {
	slots []T
}

// NewFixed creates a pool of capacity slots built by newFn, called once per
// slot in index order. The first newFn error aborts construction.
func NewFixed[T any](capacity uint, newFn func(i int) (T, error)) (Pool[T], error) {
	if capacity == 0 {
		return nil, fmt.Errorf("pool capacity must be greater than zero")
	}
	p := &fixed[T]{slots: make([]T, 0, capacity)}
	for i := 0; i < int(capacity); i++ {
		el, err := newFn(i)
		if err != nil {
			return nil, fmt.Errorf("create slot %d: %w", i, err)
		}
		p.slots = append(p.slots, el)
	}
	return p, nil
}

func (p *fixed[T]) Len() int { return len(p.slots) }

func (p *fixed[T]) At(i int) T { return p.slots[i] }

func (p *fixed[T]) Each(fn func(i int, el T) bool) {
	for i, el := range p.slots {
		if !fn(i, el) {
			return
		}
	}
}
