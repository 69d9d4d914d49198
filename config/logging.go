package config

// LoggingConfig selects the zerolog level and output format.
type LoggingConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `json:"level"`
	// Format is "console" or "json".
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
}

// Validate checks the format. Level names are checked when the logger is built.
func (c LoggingConfig) Validate() error {
	if c.Format != "console" && c.Format != "json" {
		return invalid("unknown log format", "logging.format", c.Format)
	}
	return nil
}

// MetricsConfig enables Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	// Namespace prefixes metric names.
	Namespace string `json:"namespace"`
	// Addr, when set, serves /metrics on this address.
	Addr string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "gateways"
	}
}

// Validate checks mandatory fields.
func (c MetricsConfig) Validate() error {
	if c.Addr != "" && !c.Enabled {
		return invalid("metrics address set while metrics are disabled", "metrics.addr", c.Addr)
	}
	return nil
}
