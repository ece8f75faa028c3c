package config

import "time"

// Config is the root configuration structure for Bastion.
// It contains the HTTP server, flow and detector definitions, the
// collaborators detectors depend on (embeddings, OpenSearch), notification
// sinks, the verdict store and telemetry.
type Config struct {
	// Service identifies this deployment in notifications, logs and traces.
	Service ServiceConfig `yaml:"service"`

	// Server contains HTTP API server configuration.
	Server ServerConfig `yaml:"server"`

	// Orchestrator contains flow execution settings.
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	// Flows maps flow names to detector names. A "default" flow holding every
	// enabled detector always exists and does not need to be listed.
	Flows []FlowConfig `yaml:"flows"`

	// Detectors contains per-detector settings.
	Detectors DetectorsConfig `yaml:"detectors"`

	// Embeddings configures the embedding provider used by the ML and
	// similarity detectors.
	Embeddings EmbeddingsConfig `yaml:"embeddings"`

	// OpenSearch configures the vector index used by the similarity detector.
	OpenSearch OpenSearchConfig `yaml:"opensearch"`

	// Notify configures asynchronous forwarding of block/notify verdicts.
	Notify NotifyConfig `yaml:"notify"`

	// Store configures the local verdict store.
	Store StoreConfig `yaml:"store"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// MCP configures the Model Context Protocol tool server.
	MCP MCPConfig `yaml:"mcp"`

	// Secrets configures how ${env:...} and ${file:...} references in
	// credential fields are resolved.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures secret reference resolution.
type SecretsConfig struct {
	// Dir holds one file per secret for ${file:name} references.
	// Default: "/run/secrets"
	Dir string `yaml:"dir"`

	// EnvPrefix is prepended to ${env:name} lookups.
	// Default: "BASTION_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	// Name is the service name attached to notifications and traces.
	// Default: "bastion"
	Name string `yaml:"name"`

	// Version overrides the service version. When empty the VERSION file
	// (VersionFile) is read, falling back to the build version.
	Version string `yaml:"version"`

	// VersionFile is the path of a file holding the service version.
	// Default: "VERSION"
	VersionFile string `yaml:"version_file"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on ("host:port").
	// Default: "0.0.0.0:8000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// It must exceed the detector timeout so slow flows can still answer.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds a single API request end to end.
	// Default: 55s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxBodyBytes limits the size of a run_pipeline request body.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`

	// TLS enables HTTPS termination.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are written.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// AllowedOrigins lists allowed origins. ["*"] allows any origin.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists allowed methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists allowed request headers.
	// Default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls the Access-Control-Allow-Credentials header.
	AllowCredentials bool `yaml:"allow_credentials"`
}

// IsEnabled reports whether CORS is enabled, treating unset as enabled.
func (c CORSConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// OrchestratorConfig contains flow execution settings.
type OrchestratorConfig struct {
	// DetectorTimeout bounds each detector run. A detector that does not
	// answer in time is recorded as ALLOW.
	// Default: 30s
	DetectorTimeout time.Duration `yaml:"detector_timeout"`
}

// FlowConfig declares one named flow.
type FlowConfig struct {
	// Name is the flow name used in run_pipeline requests.
	Name string `yaml:"name"`

	// Detectors lists detector names in execution order. Unknown or
	// disabled names are dropped with a warning.
	Detectors []string `yaml:"detectors"`
}

// DetectorsConfig groups per-detector settings. A detector is enabled when
// its dependencies are configured and initialize successfully.
type DetectorsConfig struct {
	Regex        RegexConfig        `yaml:"regex"`
	CodeAnalysis CodeAnalysisConfig `yaml:"code_analysis"`
	ML           MLConfig           `yaml:"ml"`
	OpenAI       OpenAIConfig       `yaml:"openai"`
	Similarity   SimilarityConfig   `yaml:"similarity"`
}

// RegexConfig configures the regex rule detector.
type RegexConfig struct {
	// RulesDir is the directory holding regex rule files (.yml/.yaml).
	// Default: "rules/regex"
	RulesDir string `yaml:"rules_dir"`

	// Watch reloads rules when files under RulesDir change.
	Watch bool `yaml:"watch"`

	// Git optionally syncs RulesDir from a git repository.
	Git RuleGitConfig `yaml:"git"`
}

// RuleGitConfig configures syncing rule files from a git repository.
type RuleGitConfig struct {
	// Enabled turns on git sync. When enabled the regex rules are loaded from
	// LocalPath/Path instead of RulesDir.
	Enabled bool `yaml:"enabled"`

	// Repository is the clone URL.
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path is the rules directory inside the repository.
	// Default: "."
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "data/rules-repo"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history; 0 clones everything.
	// Default: 1
	Depth int `yaml:"depth"`

	// PollInterval is how often the repository is pulled.
	// Default: 5m
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds a single clone or pull.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures repository credentials.
	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig configures git credentials.
type GitAuthConfig struct {
	// Type is one of "none", "token" or "ssh".
	// Default: "none"
	Type string `yaml:"type"`

	// Token is a personal access token for HTTPS remotes.
	Token string `yaml:"token"`

	// SSHKeyPath is the private key for SSH remotes.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase decrypts SSHKeyPath when set.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// CodeAnalysisConfig configures the static analysis detector.
type CodeAnalysisConfig struct {
	// SemgrepPath is the semgrep executable name or path.
	// Default: "semgrep"
	SemgrepPath string `yaml:"semgrep_path"`

	// RulesDir holds optional local rulesets, one subdirectory per language.
	// Default: "rules/code_analysis"
	RulesDir string `yaml:"rules_dir"`

	// TempDir is where code snippets are written before scanning.
	// Default: the OS temp directory
	TempDir string `yaml:"temp_dir"`
}

// MLConfig configures the ML classifier detector.
type MLConfig struct {
	// ModelPath is an ONNX binary classifier taking one embedding vector.
	// The detector is disabled when empty.
	ModelPath string `yaml:"model_path"`

	// SharedLibraryPath is the onnxruntime shared library. When empty the
	// ONNXRUNTIME_SHARED_LIBRARY_PATH environment variable is used.
	SharedLibraryPath string `yaml:"shared_library_path"`

	// InputName is the model input tensor name.
	// Default: "input"
	InputName string `yaml:"input_name"`

	// OutputName is the model output tensor name (one probability per row).
	// Default: "output"
	OutputName string `yaml:"output_name"`

	// Threshold is the probability at or above which a prompt is malicious.
	// Default: 0.5
	Threshold float64 `yaml:"threshold"`

	// Output is the form of a multi-column output: "probabilities" (used
	// as is) or "logits" (softmax applied).
	// Default: "probabilities"
	Output string `yaml:"output"`
}

// OpenAIConfig configures the LLM judge detector.
type OpenAIConfig struct {
	// APIKey enables the detector when set.
	APIKey string `yaml:"api_key"`

	// BaseURL is the chat completions API base URL.
	// Default: "https://api.openai.com/v1"
	BaseURL string `yaml:"base_url"`

	// Model is the chat model.
	// Default: "gpt-4"
	Model string `yaml:"model"`

	// Temperature for the judge request.
	// Default: 0.1
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the judge reply.
	// Default: 1000
	MaxTokens int `yaml:"max_tokens"`

	// Timeout per HTTP request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries for transient failures.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`
}

// SimilarityConfig configures the vector similarity detector.
type SimilarityConfig struct {
	// NotifyThreshold: neighbors scoring above it are reported. An explicit
	// 0 reports every neighbor.
	// Default: 0.7
	NotifyThreshold *float64 `yaml:"notify_threshold"`

	// BlockThreshold: neighbors scoring at or above it block.
	// Default: 0.87
	BlockThreshold *float64 `yaml:"block_threshold"`

	// BatchSize bounds concurrent sentence lookups.
	// Default: 5
	BatchSize int `yaml:"batch_size"`
}

// EmbeddingsConfig configures an OpenAI compatible embeddings endpoint.
type EmbeddingsConfig struct {
	// BaseURL of the embeddings API. Embedding-based detectors are disabled when empty.
	BaseURL string `yaml:"base_url"`

	// APIKey sent as a bearer token when set.
	APIKey string `yaml:"api_key"`

	// Model is the embedding model.
	// Default: "nomic-embed-text-v1.5"
	Model string `yaml:"model"`

	// Dimension is the embedding vector length.
	// Default: 768
	Dimension int `yaml:"dimension"`

	// Timeout per HTTP request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries for transient failures.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`
}

// OpenSearchConfig configures the similarity vector index.
type OpenSearchConfig struct {
	// Addresses of the cluster. The similarity detector is disabled when empty.
	Addresses []string `yaml:"addresses"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Index holds the prompt examples.
	// Default: "similarity-prompt-index"
	Index string `yaml:"index"`

	// TopK is the number of neighbors per query.
	// Default: 5
	TopK int `yaml:"top_k"`

	// InsecureSkipVerify disables TLS verification (self-signed dev clusters).
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// NotifyConfig configures notification sinks.
type NotifyConfig struct {
	// QueueSize bounds buffered events. Events are dropped when full.
	// Default: 1000
	QueueSize int `yaml:"queue_size"`

	// Workers delivering events.
	// Default: 2
	Workers int `yaml:"workers"`

	// ShutdownTimeout bounds draining on shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// SavePrompt includes the prompt text in events.
	SavePrompt bool `yaml:"save_prompt"`

	Kafka   KafkaConfig   `yaml:"kafka"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// KafkaConfig configures the Kafka sink. The sink is disabled when
// BootstrapServers is empty.
type KafkaConfig struct {
	BootstrapServers []string `yaml:"bootstrap_servers"`

	// Topic receives one JSON message per event.
	// Default: "bastion-verdicts"
	Topic string `yaml:"topic"`

	// SecurityProtocol is PLAINTEXT, SSL, SASL_PLAINTEXT or SASL_SSL.
	// Default: "PLAINTEXT"
	SecurityProtocol string `yaml:"security_protocol"`

	// SASLMechanism is PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512.
	SASLMechanism string `yaml:"sasl_mechanism"`
	SASLUsername  string `yaml:"sasl_username"`
	SASLPassword  string `yaml:"sasl_password"`

	// WriteTimeout bounds one publish.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// WebhookConfig configures the webhook sink. Disabled when URL is empty.
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`

	// Timeout per attempt.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig configures the sqlite verdict store.
type StoreConfig struct {
	// Enabled records every non-allow verdict.
	Enabled bool `yaml:"enabled"`

	// Path of the sqlite database.
	// Default: "data/verdicts.db"
	Path string `yaml:"path"`

	// BusyTimeout for sqlite locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// RetentionDays deletes records older than this. 0 keeps forever.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for retention runs.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is json or text.
	// Default: "json"
	Format string `yaml:"format"`

	// RedactPrompts replaces prompt attributes in logs with their length.
	RedactPrompts bool `yaml:"redact_prompts"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled exposes metrics. Default: true
	Enabled *bool `yaml:"enabled"`

	// Path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "bastion"
	Namespace string `yaml:"namespace"`

	// Subsystem is an optional second prefix.
	Subsystem string `yaml:"subsystem"`
}

// Notify returns the notify threshold, treating unset as the default.
func (s SimilarityConfig) Notify() float64 {
	if s.NotifyThreshold == nil {
		return DefaultSimilarityNotify
	}
	return *s.NotifyThreshold
}

// Block returns the block threshold, treating unset as the default.
func (s SimilarityConfig) Block() float64 {
	if s.BlockThreshold == nil {
		return DefaultSimilarityBlock
	}
	return *s.BlockThreshold
}

// IsEnabled reports whether metrics are enabled, treating unset as enabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName reported on spans. Defaults to service.name.
	ServiceName string `yaml:"service_name"`

	// SampleRatio between 0 and 1.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout for span export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// MCPConfig configures the MCP tool server.
type MCPConfig struct {
	// Transport is "stdio" or "http".
	// Default: "stdio"
	Transport string `yaml:"transport"`

	// ListenAddress for the streamable HTTP transport.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`
}
