package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PromProvider creates instruments backed by Prometheus collectors registered
// on a Registerer. Instruments are created once per name and reused.
// A collector already registered under the same name is reused as well.
type PromProvider struct {
	reg       prometheus.Registerer
	namespace string

	mu         sync.Mutex
	counters   map[string]*promCounter
	gauges     map[string]*promUpDownCounter
	histograms map[string]*promHistogram
	errs       []error
}

// NewPromProvider returns a provider registering on reg under namespace.
// A nil reg defaults to the global Prometheus registerer.
func NewPromProvider(namespace string, reg prometheus.Registerer) *PromProvider {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PromProvider{
		reg:        reg,
		namespace:  namespace,
		counters:   make(map[string]*promCounter),
		gauges:     make(map[string]*promUpDownCounter),
		histograms: make(map[string]*promHistogram),
	}
}

// Err returns the registration errors collected so far, joined.
// Instruments whose registration failed still record values but are not exported.
func (p *PromProvider) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func help(name string, cfg InstrumentConfig) string {
	if cfg.Description != "" {
		return cfg.Description
	}
	return name
}

// Counter returns a monotonic counter exported as a Prometheus counter.
func (p *PromProvider) Counter(name string, opts ...InstrumentOption) Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[name]; ok {
		return c
	}
	cfg := applyOptions(opts)
	var c prometheus.Counter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   p.namespace,
		Name:        name,
		Help:        help(name, cfg),
		ConstLabels: cfg.Attributes,
	})
	if err := p.reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				c = existing
			}
		} else {
			p.errs = append(p.errs, err)
		}
	}
	pc := &promCounter{c: c}
	p.counters[name] = pc
	return pc
}

// UpDownCounter returns an up/down counter exported as a Prometheus gauge.
func (p *PromProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.gauges[name]; ok {
		return g
	}
	cfg := applyOptions(opts)
	var g prometheus.Gauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   p.namespace,
		Name:        name,
		Help:        help(name, cfg),
		ConstLabels: cfg.Attributes,
	})
	if err := p.reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				g = existing
			}
		} else {
			p.errs = append(p.errs, err)
		}
	}
	pg := &promUpDownCounter{g: g}
	p.gauges[name] = pg
	return pg
}

// Histogram returns a histogram exported with the default Prometheus buckets.
func (p *PromProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.histograms[name]; ok {
		return h
	}
	cfg := applyOptions(opts)
	var h prometheus.Histogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   p.namespace,
		Name:        name,
		Help:        help(name, cfg),
		ConstLabels: cfg.Attributes,
		Buckets:     prometheus.DefBuckets,
	})
	if err := p.reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				h = existing
			}
		} else {
			p.errs = append(p.errs, err)
		}
	}
	ph := &promHistogram{h: h}
	p.histograms[name] = ph
	return ph
}

type promCounter struct{ c prometheus.Counter }

// Add ignores negative values: Prometheus counters only go up.
func (c *promCounter) Add(n int64) {
	if n > 0 {
		c.c.Add(float64(n))
	}
}

type promUpDownCounter struct{ g prometheus.Gauge }

func (u *promUpDownCounter) Add(n int64) { u.g.Add(float64(n)) }

type promHistogram struct{ h prometheus.Histogram }

func (h *promHistogram) Record(v float64) { h.h.Observe(v) }
