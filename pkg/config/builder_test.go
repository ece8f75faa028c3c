package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with defaults applied.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	var cfg Config
	ApplyDefaults(&cfg)
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithDetectorTimeout sets the per-detector timeout.
func (b *ConfigBuilder) WithDetectorTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Orchestrator.DetectorTimeout = d
	return b
}

// WithFlow appends a flow.
func (b *ConfigBuilder) WithFlow(name string, detectors ...string) *ConfigBuilder {
	b.cfg.Flows = append(b.cfg.Flows, FlowConfig{Name: name, Detectors: detectors})
	return b
}

// WithKafka enables the Kafka sink.
func (b *ConfigBuilder) WithKafka(servers ...string) *ConfigBuilder {
	b.cfg.Notify.Kafka.BootstrapServers = servers
	return b
}

// WithLogging sets the logging level and format.
func (b *ConfigBuilder) WithLogging(level, format string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	b.cfg.Telemetry.Logging.Format = format
	return b
}

// MinimalConfig returns a minimal valid configuration for testing.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}
