package config

import "time"

// Default values for configuration fields.
const (
	// Service defaults
	DefaultServiceName        = "bastion"
	DefaultServiceVersionFile = "VERSION"

	// Server defaults
	DefaultListenAddress   = "0.0.0.0:8000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 55 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)
	DefaultCORSMaxAge      = 3600

	// Orchestrator defaults
	DefaultDetectorTimeout = 30 * time.Second

	// Regex detector defaults
	DefaultRegexRulesDir    = "rules/regex"
	DefaultRuleGitBranch    = "main"
	DefaultRuleGitPath      = "."
	DefaultRuleGitLocalPath = "data/rules-repo"
	DefaultRuleGitDepth     = 1
	DefaultRuleGitPoll      = 5 * time.Minute
	DefaultRuleGitTimeout   = 60 * time.Second
	DefaultRuleGitAuthType  = "none"

	// Code analysis defaults
	DefaultSemgrepPath          = "semgrep"
	DefaultCodeAnalysisRulesDir = "rules/code_analysis"

	// ML defaults
	DefaultMLInputName  = "input"
	DefaultMLOutputName = "output"
	DefaultMLThreshold  = 0.5
	DefaultMLOutput     = "probabilities"

	// OpenAI defaults
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenAIModel       = "gpt-4"
	DefaultOpenAITemperature = 0.1
	DefaultOpenAIMaxTokens   = 1000
	DefaultOpenAITimeout     = 30 * time.Second
	DefaultProviderRetries   = 2

	// Similarity defaults
	DefaultSimilarityNotify    = 0.7
	DefaultSimilarityBlock     = 0.87
	DefaultSimilarityBatchSize = 5

	// Embeddings defaults
	DefaultEmbeddingsModel     = "nomic-embed-text-v1.5"
	DefaultEmbeddingsDimension = 768
	DefaultEmbeddingsTimeout   = 10 * time.Second

	// OpenSearch defaults
	DefaultOpenSearchIndex = "similarity-prompt-index"
	DefaultOpenSearchTopK  = 5

	// Notify defaults
	DefaultNotifyQueueSize       = 1000
	DefaultNotifyWorkers         = 2
	DefaultNotifyShutdownTimeout = 10 * time.Second
	DefaultKafkaTopic            = "bastion-verdicts"
	DefaultKafkaSecurityProtocol = "PLAINTEXT"
	DefaultKafkaWriteTimeout     = 10 * time.Second
	DefaultWebhookTimeout        = 5 * time.Second

	// Store defaults
	DefaultStorePath          = "data/verdicts.db"
	DefaultStoreBusyTimeout   = 5 * time.Second
	DefaultStoreRetentionDays = 30
	DefaultStorePruneSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "bastion"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingTimeout     = 10 * time.Second

	// MCP defaults
	DefaultMCPTransport     = "stdio"
	DefaultMCPListenAddress = "127.0.0.1:8090"

	// Secrets defaults
	DefaultSecretsDir       = "/run/secrets"
	DefaultSecretsEnvPrefix = "BASTION_SECRET_"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Service defaults
	if cfg.Service.Name == "" {
		cfg.Service.Name = DefaultServiceName
	}
	if cfg.Service.VersionFile == "" {
		cfg.Service.VersionFile = DefaultServiceVersionFile
	}

	applyServerDefaults(&cfg.Server)

	if cfg.Orchestrator.DetectorTimeout == 0 {
		cfg.Orchestrator.DetectorTimeout = DefaultDetectorTimeout
	}

	applyDetectorDefaults(&cfg.Detectors)

	// Embeddings defaults
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = DefaultEmbeddingsModel
	}
	if cfg.Embeddings.Dimension == 0 {
		cfg.Embeddings.Dimension = DefaultEmbeddingsDimension
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = DefaultEmbeddingsTimeout
	}
	if cfg.Embeddings.MaxRetries == 0 {
		cfg.Embeddings.MaxRetries = DefaultProviderRetries
	}

	// OpenSearch defaults
	if cfg.OpenSearch.Index == "" {
		cfg.OpenSearch.Index = DefaultOpenSearchIndex
	}
	if cfg.OpenSearch.TopK == 0 {
		cfg.OpenSearch.TopK = DefaultOpenSearchTopK
	}

	applyNotifyDefaults(&cfg.Notify)

	// Store defaults
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = DefaultStoreBusyTimeout
	}
	if cfg.Store.RetentionDays == 0 {
		cfg.Store.RetentionDays = DefaultStoreRetentionDays
	}
	if cfg.Store.PruneSchedule == "" {
		cfg.Store.PruneSchedule = DefaultStorePruneSchedule
	}

	applyTelemetryDefaults(cfg)

	// MCP defaults
	if cfg.MCP.Transport == "" {
		cfg.MCP.Transport = DefaultMCPTransport
	}
	if cfg.MCP.ListenAddress == "" {
		cfg.MCP.ListenAddress = DefaultMCPListenAddress
	}

	if cfg.Secrets.Dir == "" {
		cfg.Secrets.Dir = DefaultSecretsDir
	}
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// CORS defaults
	if len(s.CORS.AllowedOrigins) == 0 {
		s.CORS.AllowedOrigins = []string{"*"}
	}
	if len(s.CORS.AllowedMethods) == 0 {
		s.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(s.CORS.AllowedHeaders) == 0 {
		s.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if s.CORS.MaxAge == 0 {
		s.CORS.MaxAge = DefaultCORSMaxAge
	}
}

func applyDetectorDefaults(d *DetectorsConfig) {
	if d.Regex.RulesDir == "" {
		d.Regex.RulesDir = DefaultRegexRulesDir
	}
	g := &d.Regex.Git
	if g.Branch == "" {
		g.Branch = DefaultRuleGitBranch
	}
	if g.Path == "" {
		g.Path = DefaultRuleGitPath
	}
	if g.LocalPath == "" {
		g.LocalPath = DefaultRuleGitLocalPath
	}
	if g.Depth == 0 {
		g.Depth = DefaultRuleGitDepth
	}
	if g.PollInterval == 0 {
		g.PollInterval = DefaultRuleGitPoll
	}
	if g.Timeout == 0 {
		g.Timeout = DefaultRuleGitTimeout
	}
	if g.Auth.Type == "" {
		g.Auth.Type = DefaultRuleGitAuthType
	}

	if d.CodeAnalysis.SemgrepPath == "" {
		d.CodeAnalysis.SemgrepPath = DefaultSemgrepPath
	}
	if d.CodeAnalysis.RulesDir == "" {
		d.CodeAnalysis.RulesDir = DefaultCodeAnalysisRulesDir
	}

	if d.ML.InputName == "" {
		d.ML.InputName = DefaultMLInputName
	}
	if d.ML.OutputName == "" {
		d.ML.OutputName = DefaultMLOutputName
	}
	if d.ML.Threshold == 0 {
		d.ML.Threshold = DefaultMLThreshold
	}
	if d.ML.Output == "" {
		d.ML.Output = DefaultMLOutput
	}

	o := &d.OpenAI
	if o.BaseURL == "" {
		o.BaseURL = DefaultOpenAIBaseURL
	}
	if o.Model == "" {
		o.Model = DefaultOpenAIModel
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultOpenAITemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultOpenAIMaxTokens
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultOpenAITimeout
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultProviderRetries
	}

	s := &d.Similarity
	if s.NotifyThreshold == nil {
		v := DefaultSimilarityNotify
		s.NotifyThreshold = &v
	}
	if s.BlockThreshold == nil {
		v := DefaultSimilarityBlock
		s.BlockThreshold = &v
	}
	if s.BatchSize == 0 {
		s.BatchSize = DefaultSimilarityBatchSize
	}
}

func applyNotifyDefaults(n *NotifyConfig) {
	if n.QueueSize == 0 {
		n.QueueSize = DefaultNotifyQueueSize
	}
	if n.Workers == 0 {
		n.Workers = DefaultNotifyWorkers
	}
	if n.ShutdownTimeout == 0 {
		n.ShutdownTimeout = DefaultNotifyShutdownTimeout
	}
	if n.Kafka.Topic == "" {
		n.Kafka.Topic = DefaultKafkaTopic
	}
	if n.Kafka.SecurityProtocol == "" {
		n.Kafka.SecurityProtocol = DefaultKafkaSecurityProtocol
	}
	if n.Kafka.WriteTimeout == 0 {
		n.Kafka.WriteTimeout = DefaultKafkaWriteTimeout
	}
	if n.Webhook.Timeout == 0 {
		n.Webhook.Timeout = DefaultWebhookTimeout
	}
}

func applyTelemetryDefaults(cfg *Config) {
	t := &cfg.Telemetry
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = cfg.Service.Name
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}
}

// FlowMap returns configured flows as a name to detector list map.
// Later entries with the same name replace earlier ones.
func (c *Config) FlowMap() map[string][]string {
	out := make(map[string][]string, len(c.Flows))
	for _, f := range c.Flows {
		out[f.Name] = append([]string(nil), f.Detectors...)
	}
	return out
}
