package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
//
// Unknown detector names inside flows are not validation errors; the flow
// registry drops them with a warning.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)

	if cfg.Orchestrator.DetectorTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "orchestrator.detector_timeout",
			Message: "detector timeout must be positive",
		})
	}

	errs = append(errs, validateFlows(cfg.Flows)...)
	errs = append(errs, validateDetectors(&cfg.Detectors)...)
	errs = append(errs, validateEmbeddings(&cfg.Embeddings)...)
	errs = append(errs, validateOpenSearch(&cfg.OpenSearch)...)
	errs = append(errs, validateNotify(&cfg.Notify)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateMCP(&cfg.MCP)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.RequestTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.request_timeout", Message: "request timeout must be positive"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "max body bytes must be non-negative"})
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "cert file is required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "key file is required when TLS is enabled"})
		}
	}

	return errs
}

func validateFlows(flows []FlowConfig) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool, len(flows))

	for i, f := range flows {
		prefix := fmt.Sprintf("flows[%d]", i)
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "flow name is required"})
			continue
		}
		if seen[f.Name] {
			errs = append(errs, FieldError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("duplicate flow name %q", f.Name),
			})
		}
		seen[f.Name] = true
	}

	return errs
}

func validateDetectors(cfg *DetectorsConfig) []FieldError {
	var errs []FieldError

	g := cfg.Regex.Git
	if g.Enabled {
		if g.Repository == "" {
			errs = append(errs, FieldError{
				Field:   "detectors.regex.git.repository",
				Message: "repository is required when git sync is enabled",
			})
		}
		switch g.Auth.Type {
		case "none":
		case "token":
			if g.Auth.Token == "" {
				errs = append(errs, FieldError{
					Field:   "detectors.regex.git.auth.token",
					Message: "token is required for token auth",
				})
			}
		case "ssh":
			if g.Auth.SSHKeyPath == "" {
				errs = append(errs, FieldError{
					Field:   "detectors.regex.git.auth.ssh_key_path",
					Message: "ssh key path is required for ssh auth",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "detectors.regex.git.auth.type",
				Message: fmt.Sprintf("invalid auth type %q: must be 'none', 'token', or 'ssh'", g.Auth.Type),
			})
		}
		if g.PollInterval < 0 {
			errs = append(errs, FieldError{
				Field:   "detectors.regex.git.poll_interval",
				Message: "poll interval must be non-negative",
			})
		}
	}

	if cfg.ML.Threshold <= 0 || cfg.ML.Threshold > 1 {
		errs = append(errs, FieldError{
			Field:   "detectors.ml.threshold",
			Message: "threshold must be in (0.0, 1.0]",
		})
	}
	if cfg.ML.Output != "probabilities" && cfg.ML.Output != "logits" {
		errs = append(errs, FieldError{
			Field:   "detectors.ml.output",
			Message: fmt.Sprintf("output must be probabilities or logits, got %q", cfg.ML.Output),
		})
	}

	if cfg.OpenAI.APIKey != "" {
		errs = append(errs, validateURL("detectors.openai.base_url", cfg.OpenAI.BaseURL)...)
	}
	if cfg.OpenAI.MaxTokens < 0 {
		errs = append(errs, FieldError{Field: "detectors.openai.max_tokens", Message: "max tokens must be non-negative"})
	}
	if cfg.OpenAI.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: "detectors.openai.max_retries", Message: "max retries must be non-negative"})
	}

	s := cfg.Similarity
	if s.Notify() < 0 || s.Notify() > 1 {
		errs = append(errs, FieldError{
			Field:   "detectors.similarity.notify_threshold",
			Message: "notify threshold must be between 0.0 and 1.0",
		})
	}
	if s.Block() < 0 || s.Block() > 1 {
		errs = append(errs, FieldError{
			Field:   "detectors.similarity.block_threshold",
			Message: "block threshold must be between 0.0 and 1.0",
		})
	}
	if s.Block() < s.Notify() {
		errs = append(errs, FieldError{
			Field:   "detectors.similarity.block_threshold",
			Message: "block threshold must not be below notify threshold",
		})
	}
	if s.BatchSize < 1 {
		errs = append(errs, FieldError{
			Field:   "detectors.similarity.batch_size",
			Message: "batch size must be at least 1",
		})
	}

	return errs
}

func validateEmbeddings(cfg *EmbeddingsConfig) []FieldError {
	var errs []FieldError
	if cfg.BaseURL != "" {
		errs = append(errs, validateURL("embeddings.base_url", cfg.BaseURL)...)
	}
	if cfg.Dimension <= 0 {
		errs = append(errs, FieldError{Field: "embeddings.dimension", Message: "dimension must be positive"})
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: "embeddings.max_retries", Message: "max retries must be non-negative"})
	}
	return errs
}

func validateOpenSearch(cfg *OpenSearchConfig) []FieldError {
	var errs []FieldError
	for i, addr := range cfg.Addresses {
		errs = append(errs, validateURL(fmt.Sprintf("opensearch.addresses[%d]", i), addr)...)
	}
	if cfg.TopK < 1 {
		errs = append(errs, FieldError{Field: "opensearch.top_k", Message: "top_k must be at least 1"})
	}
	return errs
}

func validateNotify(cfg *NotifyConfig) []FieldError {
	var errs []FieldError

	if cfg.QueueSize < 1 {
		errs = append(errs, FieldError{Field: "notify.queue_size", Message: "queue size must be at least 1"})
	}
	if cfg.Workers < 1 {
		errs = append(errs, FieldError{Field: "notify.workers", Message: "workers must be at least 1"})
	}

	k := cfg.Kafka
	if len(k.BootstrapServers) > 0 {
		switch strings.ToUpper(k.SecurityProtocol) {
		case "PLAINTEXT", "SSL":
		case "SASL_PLAINTEXT", "SASL_SSL":
			switch strings.ToUpper(k.SASLMechanism) {
			case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
			default:
				errs = append(errs, FieldError{
					Field:   "notify.kafka.sasl_mechanism",
					Message: fmt.Sprintf("invalid sasl mechanism %q: must be 'PLAIN', 'SCRAM-SHA-256', or 'SCRAM-SHA-512'", k.SASLMechanism),
				})
			}
			if k.SASLUsername == "" {
				errs = append(errs, FieldError{
					Field:   "notify.kafka.sasl_username",
					Message: "sasl username is required for SASL protocols",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "notify.kafka.security_protocol",
				Message: fmt.Sprintf("invalid security protocol %q", k.SecurityProtocol),
			})
		}
		if k.Topic == "" {
			errs = append(errs, FieldError{Field: "notify.kafka.topic", Message: "topic is required"})
		}
	}

	if cfg.Webhook.URL != "" {
		errs = append(errs, validateURL("notify.webhook.url", cfg.Webhook.URL)...)
	}

	return errs
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError
	if !cfg.Enabled {
		return nil
	}
	if cfg.Path == "" {
		errs = append(errs, FieldError{Field: "store.path", Message: "path is required when the store is enabled"})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "store.retention_days", Message: "retention days must be non-negative"})
	}
	if cfg.RetentionDays > 0 {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "store.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.PruneSchedule, err),
			})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.IsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/'",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}

func validateMCP(cfg *MCPConfig) []FieldError {
	switch cfg.Transport {
	case "stdio", "http":
		return nil
	default:
		return []FieldError{{
			Field:   "mcp.transport",
			Message: fmt.Sprintf("invalid transport %q: must be 'stdio' or 'http'", cfg.Transport),
		}}
	}
}

func validateURL(field, raw string) []FieldError {
	u, err := url.Parse(raw)
	if err != nil {
		return []FieldError{{Field: field, Message: fmt.Sprintf("invalid URL: %v", err)}}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []FieldError{{Field: field, Message: fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme)}}
	}
	if u.Host == "" {
		return []FieldError{{Field: field, Message: "URL host is required"}}
	}
	return nil
}
