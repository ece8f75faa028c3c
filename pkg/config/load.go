package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := ResolveSecrets(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention BASTION_SECTION_FIELD (e.g., BASTION_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Resolve secret references
// 5. Validate final configuration
//
// A missing file is not an error when allowMissing is set; the configuration
// is then built from defaults and the environment alone.
func LoadConfigWithEnvOverrides(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !(allowMissing && os.IsNotExist(err)) {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		data = nil
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := ResolveSecrets(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format BASTION_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Service overrides
	envString("BASTION_SERVICE_NAME", &cfg.Service.Name)
	envString("BASTION_SERVICE_VERSION", &cfg.Service.Version)

	// Server overrides
	envString("BASTION_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("BASTION_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("BASTION_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("BASTION_SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	envBool("BASTION_SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	envString("BASTION_SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	envString("BASTION_SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)

	// Orchestrator overrides
	envDuration("BASTION_DETECTOR_TIMEOUT", &cfg.Orchestrator.DetectorTimeout)

	// Detector overrides
	envString("BASTION_REGEX_RULES_DIR", &cfg.Detectors.Regex.RulesDir)
	envBool("BASTION_REGEX_WATCH", &cfg.Detectors.Regex.Watch)
	envString("BASTION_RULES_GIT_TOKEN", &cfg.Detectors.Regex.Git.Auth.Token)
	envString("BASTION_SEMGREP_PATH", &cfg.Detectors.CodeAnalysis.SemgrepPath)
	envString("BASTION_ML_MODEL_PATH", &cfg.Detectors.ML.ModelPath)
	envString("BASTION_ML_SHARED_LIBRARY_PATH", &cfg.Detectors.ML.SharedLibraryPath)
	envString("BASTION_OPENAI_API_KEY", &cfg.Detectors.OpenAI.APIKey)
	envString("BASTION_OPENAI_BASE_URL", &cfg.Detectors.OpenAI.BaseURL)
	envString("BASTION_OPENAI_MODEL", &cfg.Detectors.OpenAI.Model)
	envFloat("BASTION_SIMILARITY_NOTIFY_THRESHOLD", &cfg.Detectors.Similarity.NotifyThreshold)
	envFloat("BASTION_SIMILARITY_BLOCK_THRESHOLD", &cfg.Detectors.Similarity.BlockThreshold)

	// Embeddings overrides
	envString("BASTION_EMBEDDINGS_BASE_URL", &cfg.Embeddings.BaseURL)
	envString("BASTION_EMBEDDINGS_API_KEY", &cfg.Embeddings.APIKey)
	envString("BASTION_EMBEDDINGS_MODEL", &cfg.Embeddings.Model)

	// OpenSearch overrides
	envList("BASTION_OPENSEARCH_ADDRESSES", &cfg.OpenSearch.Addresses)
	envString("BASTION_OPENSEARCH_USERNAME", &cfg.OpenSearch.Username)
	envString("BASTION_OPENSEARCH_PASSWORD", &cfg.OpenSearch.Password)
	envString("BASTION_OPENSEARCH_INDEX", &cfg.OpenSearch.Index)

	// Notify overrides
	envBool("BASTION_NOTIFY_SAVE_PROMPT", &cfg.Notify.SavePrompt)
	envList("BASTION_KAFKA_BOOTSTRAP_SERVERS", &cfg.Notify.Kafka.BootstrapServers)
	envString("BASTION_KAFKA_TOPIC", &cfg.Notify.Kafka.Topic)
	envString("BASTION_KAFKA_SECURITY_PROTOCOL", &cfg.Notify.Kafka.SecurityProtocol)
	envString("BASTION_KAFKA_SASL_MECHANISM", &cfg.Notify.Kafka.SASLMechanism)
	envString("BASTION_KAFKA_SASL_USERNAME", &cfg.Notify.Kafka.SASLUsername)
	envString("BASTION_KAFKA_SASL_PASSWORD", &cfg.Notify.Kafka.SASLPassword)
	envString("BASTION_WEBHOOK_URL", &cfg.Notify.Webhook.URL)

	// Store overrides
	envBool("BASTION_STORE_ENABLED", &cfg.Store.Enabled)
	envString("BASTION_STORE_PATH", &cfg.Store.Path)

	// Telemetry overrides
	envString("BASTION_LOG_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("BASTION_LOG_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("BASTION_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("BASTION_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv("BASTION_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}

	// MCP overrides
	envString("BASTION_MCP_TRANSPORT", &cfg.MCP.Transport)
	envString("BASTION_MCP_LISTEN_ADDRESS", &cfg.MCP.ListenAddress)

	// Secrets overrides
	envString("BASTION_SECRETS_DIR", &cfg.Secrets.Dir)
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

// Invalid values are ignored and the file value is kept.
func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envFloat(key string, dst **float64) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = &f
		}
	}
}

// envList reads a comma-separated list.
func envList(key string, dst *[]string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

// ResolveVersion returns the service version: the configured value, else
// the trimmed content of the version file, else fallback.
func (c *Config) ResolveVersion(fallback string) string {
	if c.Service.Version != "" {
		return c.Service.Version
	}
	if c.Service.VersionFile != "" {
		if data, err := os.ReadFile(c.Service.VersionFile); err == nil {
			if v := strings.TrimSpace(string(data)); v != "" {
				return v
			}
		}
	}
	return fallback
}
