// Package config loads dispatcher settings and batch documents from YAML or
// JSON files, with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/ygrebnov/errorc"
	"golang.org/x/time/rate"

	"github.com/ygrebnov/gateways"
)

// EnvPrefix prefixes environment overrides. GATEWAYS_RATE_LIMIT__BURST=4
// overrides rate_limit.burst.
const EnvPrefix = "GATEWAYS_"

// Config is the file representation of a Dispatcher.
type Config struct {
	// Gateways is the size of the gateway pool.
	Gateways int `json:"gateways"`
	// Policy is one of "none", "cancellation" or "termination".
	Policy string `json:"policy"`
	// CompletionOrder is "dispatch" (default) or "signal".
	CompletionOrder string          `json:"completion_order"`
	RateLimit       RateLimitConfig `json:"rate_limit"`
	Handler         HandlerConfig   `json:"handler"`
	Logging         LoggingConfig   `json:"logging"`
	Metrics         MetricsConfig   `json:"metrics"`
}

// RateLimitConfig paces gateway assignments. Zero PerSecond disables pacing.
type RateLimitConfig struct {
	PerSecond float64 `json:"per_second"`
	Burst     int     `json:"burst"`
}

// HandlerConfig describes the processing effect used by gatewayctl.
type HandlerConfig struct {
	// DelayMS simulates processing time per message.
	DelayMS int `json:"delay_ms"`
}

// Delay returns DelayMS as a duration.
func (h HandlerConfig) Delay() time.Duration { return time.Duration(h.DelayMS) * time.Millisecond }

// Load reads path (.yaml, .yml or .json), applies GATEWAYS_ environment
// overrides, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	if err = k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err = k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
}

// SetDefaults applies defaults to unset fields.
func (c *Config) SetDefaults() {
	if c.Gateways == 0 {
		c.Gateways = 1
	}
	if c.Policy == "" {
		c.Policy = gateways.PolicyNone.String()
	}
	if c.CompletionOrder == "" {
		c.CompletionOrder = "dispatch"
	}
	if c.RateLimit.PerSecond > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 1
	}
	c.Logging.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks field values.
func (c Config) Validate() error {
	if c.Gateways <= 0 {
		return invalid("gateways must be positive", "gateways", strconv.Itoa(c.Gateways))
	}
	if _, err := ParsePolicy(c.Policy); err != nil {
		return err
	}
	if c.CompletionOrder != "dispatch" && c.CompletionOrder != "signal" {
		return invalid("unknown completion order", "completion_order", c.CompletionOrder)
	}
	if c.RateLimit.PerSecond < 0 {
		return invalid("rate limit cannot be negative", "rate_limit.per_second",
			strconv.FormatFloat(c.RateLimit.PerSecond, 'g', -1, 64))
	}
	if c.RateLimit.PerSecond > 0 && c.RateLimit.Burst < 1 {
		return invalid("rate limit burst must be at least 1", "rate_limit.burst", strconv.Itoa(c.RateLimit.Burst))
	}
	if c.Handler.DelayMS < 0 {
		return invalid("handler delay cannot be negative", "handler.delay_ms", strconv.Itoa(c.Handler.DelayMS))
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}

// ParsePolicy maps a policy name to a gateways.Policy.
func ParsePolicy(name string) (gateways.Policy, error) {
	for _, p := range []gateways.Policy{gateways.PolicyNone, gateways.PolicyCancellation, gateways.PolicyTermination} {
		if strings.EqualFold(name, p.String()) {
			return p, nil
		}
	}
	return gateways.PolicyNone, invalid("unknown policy", "policy", name)
}

// Options converts c into Dispatcher options. extra options are appended last.
func (c Config) Options(extra ...gateways.Option) ([]gateways.Option, error) {
	p, err := ParsePolicy(c.Policy)
	if err != nil {
		return nil, err
	}
	opts := []gateways.Option{gateways.WithPolicy(p)}
	if c.CompletionOrder == "signal" {
		opts = append(opts, gateways.WithCompletionOrder())
	}
	if c.RateLimit.PerSecond > 0 {
		opts = append(opts, gateways.WithRateLimit(rate.Limit(c.RateLimit.PerSecond), c.RateLimit.Burst))
	}
	return append(opts, extra...), nil
}

func invalid(msg, field, value string) error {
	return errorc.With(
		gateways.ErrInvalidConfig,
		errorc.String("", msg),
		errorc.String(field, value),
	)
}
