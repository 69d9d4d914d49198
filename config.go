package gateways

import (
	"strconv"

	"github.com/ygrebnov/errorc"
	"golang.org/x/time/rate"

	"github.com/ygrebnov/gateways/metrics"
	"github.com/ygrebnov/gateways/observe"
)

// config holds Dispatcher configuration.
type config struct {
	// Policy narrows selection: none, cancellation or termination.
	// Default: PolicyNone
	Policy Policy

	// Handler is applied by each gateway to every message it processes.
	// Default: nil (messages complete without side effects)
	Handler Handler

	// PreserveOrder records completed messages in dispatch order even when
	// gateways finish out of order. When disabled, messages are recorded in the
	// order gateways signal completion.
	// Default: true
	PreserveOrder bool

	// Sink receives dispatch events.
	// Default: observe.Nop
	Sink observe.Sink

	// Metrics receives counters derived from dispatch events.
	// Default: metrics.NoopProvider
	Metrics metrics.Provider

	// RateLimit paces assignments to gateways. Zero disables pacing.
	// Default: 0
	RateLimit rate.Limit

	// RateBurst is the limiter burst size used when RateLimit is set.
	// Default: 1
	RateBurst int

	policySet bool
}

// defaultConfig centralizes default values for config.
func defaultConfig() config {
	return config{
		Policy:        PolicyNone,
		PreserveOrder: true,
		Sink:          observe.Nop{},
		Metrics:       metrics.NoopProvider{},
		RateBurst:     1,
	}
}

// validateConfig performs invariants checks after all options are applied.
func validateConfig(cfg *config) error {
	if _, ok := newPolicy(cfg.Policy); !ok {
		return errorc.With(
			ErrInvalidConfig,
			errorc.String("", "unknown policy"),
			errorc.String("policy", strconv.Itoa(int(cfg.Policy))),
		)
	}
	if cfg.RateLimit < 0 {
		return errorc.With(ErrInvalidConfig, errorc.String("", "rate limit cannot be negative"))
	}
	if cfg.RateLimit > 0 && cfg.RateLimit != rate.Inf && cfg.RateBurst < 1 {
		return errorc.With(
			ErrInvalidConfig,
			errorc.String("", "rate limit requires a burst of at least 1"),
			errorc.String("burst", strconv.Itoa(cfg.RateBurst)),
		)
	}
	return nil
}

// Option configures a Dispatcher. Options return an error on invalid input.
type Option func(*config) error

// WithPolicy selects the selection policy. Selecting two different policies
// is a configuration error.
func WithPolicy(p Policy) Option {
	return func(cfg *config) error {
		if cfg.policySet && cfg.Policy != p {
			return errorc.With(
				ErrInvalidConfig,
				errorc.String("", "conflicting policy options"),
				errorc.String("current", cfg.Policy.String()),
				errorc.String("requested", p.String()),
			)
		}
		cfg.Policy = p
		cfg.policySet = true
		return nil
	}
}

// WithCancellation enables group cancellation (see Dispatcher.CancelGroup).
func WithCancellation() Option { return WithPolicy(PolicyCancellation) }

// WithTermination enables termination messages: once a group's termination
// message is dispatched, any further message of the group aborts the dispatch.
func WithTermination() Option { return WithPolicy(PolicyTermination) }

// WithHandler sets the processing effect applied by every gateway.
func WithHandler(h Handler) Option {
	return func(cfg *config) error { cfg.Handler = h; return nil }
}

// WithCompletionOrder records completed messages in the order gateways signal
// completion instead of dispatch order.
func WithCompletionOrder() Option {
	return func(cfg *config) error { cfg.PreserveOrder = false; return nil }
}

// WithSink sets the event sink. A nil sink disables events.
func WithSink(s observe.Sink) Option {
	return func(cfg *config) error {
		if s == nil {
			s = observe.Nop{}
		}
		cfg.Sink = s
		return nil
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a non-nil provider"))
		}
		cfg.Metrics = p
		return nil
	}
}

// WithRateLimit paces gateway assignments to limit per second with the given burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(cfg *config) error {
		cfg.RateLimit = limit
		cfg.RateBurst = burst
		return nil
	}
}
