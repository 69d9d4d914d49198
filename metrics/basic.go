package metrics

import (
	"math"
	"sync"
	"sync/atomic"
)

// BasicProvider keeps instruments in memory. It suits tests and the CLI summary.
// Instruments are created on first use and reused for the same name.
type BasicProvider struct {
	mu         sync.RWMutex
	counters   map[string]*BasicCounter
	updowns    map[string]*BasicUpDownCounter
	histograms map[string]*BasicHistogram
}

// NewBasicProvider constructs an empty BasicProvider.
func NewBasicProvider() *BasicProvider {
	return &BasicProvider{
		counters:   make(map[string]*BasicCounter),
		updowns:    make(map[string]*BasicUpDownCounter),
		histograms: make(map[string]*BasicHistogram),
	}
}

// getOrCreate returns m[name], creating it with newFn under the write lock.
func getOrCreate[T any](mu *sync.RWMutex, m map[string]*T, name string, newFn func() *T) *T {
	mu.RLock()
	v, ok := m[name]
	mu.RUnlock()
	if ok {
		return v
	}
	mu.Lock()
	defer mu.Unlock()
	if v, ok = m[name]; ok {
		return v
	}
	v = newFn()
	m[name] = v
	return v
}

// Counter returns the counter registered under name.
func (p *BasicProvider) Counter(name string, _ ...InstrumentOption) Counter {
	return getOrCreate(&p.mu, p.counters, name, func() *BasicCounter { return &BasicCounter{} })
}

// UpDownCounter returns the up/down counter registered under name.
func (p *BasicProvider) UpDownCounter(name string, _ ...InstrumentOption) UpDownCounter {
	return getOrCreate(&p.mu, p.updowns, name, func() *BasicUpDownCounter { return &BasicUpDownCounter{} })
}

// Histogram returns the histogram registered under name.
func (p *BasicProvider) Histogram(name string, _ ...InstrumentOption) Histogram {
	return getOrCreate(&p.mu, p.histograms, name, func() *BasicHistogram {
		return &BasicHistogram{min: math.Inf(1), max: math.Inf(-1)}
	})
}

// Snapshot is a point-in-time copy of every instrument of a BasicProvider.
type Snapshot struct {
	Counters   map[string]int64
	UpDowns    map[string]int64
	Histograms map[string]HistSnapshot
}

// Snapshot copies the current value of every instrument.
func (p *BasicProvider) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Snapshot{
		Counters:   make(map[string]int64, len(p.counters)),
		UpDowns:    make(map[string]int64, len(p.updowns)),
		Histograms: make(map[string]HistSnapshot, len(p.histograms)),
	}
	for k, c := range p.counters {
		s.Counters[k] = c.Snapshot()
	}
	for k, u := range p.updowns {
		s.UpDowns[k] = u.Snapshot()
	}
	for k, h := range p.histograms {
		s.Histograms[k] = h.Snapshot()
	}
	return s
}

// BasicCounter is a thread-safe monotonic counter.
type BasicCounter struct {
	val atomic.Int64
}

func (c *BasicCounter) Add(n int64) { c.val.Add(n) }

// Snapshot returns the current value.
func (c *BasicCounter) Snapshot() int64 { return c.val.Load() }

// BasicUpDownCounter is a thread-safe up/down counter.
type BasicUpDownCounter struct {
	val atomic.Int64
}

func (u *BasicUpDownCounter) Add(n int64) { u.val.Add(n) }

// Snapshot returns the current value.
func (u *BasicUpDownCounter) Snapshot() int64 { return u.val.Load() }

// BasicHistogram tracks count, sum, min and max. It keeps no buckets.
type BasicHistogram struct {
	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
}

func (h *BasicHistogram) Record(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 || v < h.min {
		h.min = v
	}
	if h.count == 0 || v > h.max {
		h.max = v
	}
	h.count++
	h.sum += v
}

// HistSnapshot is an immutable copy of a BasicHistogram.
type HistSnapshot struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Mean  float64
}

// Snapshot returns a copy of the histogram state.
func (h *BasicHistogram) Snapshot() HistSnapshot {
	h.mu.Lock()
	s := HistSnapshot{Count: h.count, Sum: h.sum, Min: h.min, Max: h.max}
	h.mu.Unlock()
	if s.Count > 0 {
		s.Mean = s.Sum / float64(s.Count)
	}
	return s
}
