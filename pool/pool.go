package pool

// Pool is a fixed set of slots kept in a stable order.
// The order is the scan order used when looking for a free slot.
type Pool[T any] interface {
	// Len returns the number of slots.
	Len() int

	// At returns the slot at index i.
	At(i int) T

	// Each calls fn for every slot in order until fn returns false.
	Each(fn func(i int, el T) bool)
}
