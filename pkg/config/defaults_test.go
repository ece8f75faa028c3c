package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"service.name", cfg.Service.Name, DefaultServiceName},
		{"server.listen_address", cfg.Server.ListenAddress, DefaultListenAddress},
		{"server.write_timeout", cfg.Server.WriteTimeout, DefaultWriteTimeout},
		{"orchestrator.detector_timeout", cfg.Orchestrator.DetectorTimeout, 30 * time.Second},
		{"detectors.regex.rules_dir", cfg.Detectors.Regex.RulesDir, DefaultRegexRulesDir},
		{"detectors.code_analysis.semgrep_path", cfg.Detectors.CodeAnalysis.SemgrepPath, "semgrep"},
		{"detectors.ml.output", cfg.Detectors.ML.Output, "probabilities"},
		{"detectors.openai.model", cfg.Detectors.OpenAI.Model, "gpt-4"},
		{"detectors.openai.temperature", cfg.Detectors.OpenAI.Temperature, 0.1},
		{"detectors.openai.max_tokens", cfg.Detectors.OpenAI.MaxTokens, 1000},
		{"detectors.similarity.notify_threshold", cfg.Detectors.Similarity.Notify(), 0.7},
		{"detectors.similarity.block_threshold", cfg.Detectors.Similarity.Block(), 0.87},
		{"detectors.similarity.batch_size", cfg.Detectors.Similarity.BatchSize, 5},
		{"embeddings.dimension", cfg.Embeddings.Dimension, 768},
		{"opensearch.index", cfg.OpenSearch.Index, "similarity-prompt-index"},
		{"opensearch.top_k", cfg.OpenSearch.TopK, 5},
		{"notify.kafka.write_timeout", cfg.Notify.Kafka.WriteTimeout, 10 * time.Second},
		{"store.prune_schedule", cfg.Store.PruneSchedule, "0 3 * * *"},
		{"telemetry.logging.level", cfg.Telemetry.Logging.Level, "info"},
		{"telemetry.tracing.service_name", cfg.Telemetry.Tracing.ServiceName, DefaultServiceName},
		{"mcp.transport", cfg.MCP.Transport, "stdio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if !cfg.Server.CORS.IsEnabled() {
		t.Error("CORS should be enabled by default")
	}
	if !cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("metrics should be enabled by default")
	}
	if cfg.Notify.SavePrompt {
		t.Error("save_prompt should default to false")
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	disabled := false
	notify, block := 0.5, 0.9
	cfg := Config{
		Server:       ServerConfig{ListenAddress: "127.0.0.1:9000"},
		Orchestrator: OrchestratorConfig{DetectorTimeout: 2 * time.Second},
		Detectors: DetectorsConfig{
			Similarity: SimilarityConfig{NotifyThreshold: &notify, BlockThreshold: &block},
		},
		Telemetry: TelemetryConfig{Metrics: MetricsConfig{Enabled: &disabled}},
	}
	ApplyDefaults(&cfg)

	if cfg.Server.ListenAddress != "127.0.0.1:9000" {
		t.Errorf("listen address overwritten: %q", cfg.Server.ListenAddress)
	}
	if cfg.Orchestrator.DetectorTimeout != 2*time.Second {
		t.Errorf("detector timeout overwritten: %v", cfg.Orchestrator.DetectorTimeout)
	}
	if cfg.Detectors.Similarity.Notify() != 0.5 || cfg.Detectors.Similarity.Block() != 0.9 {
		t.Errorf("thresholds overwritten: %+v", cfg.Detectors.Similarity)
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("explicitly disabled metrics were re-enabled")
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	var a, b Config
	ApplyDefaults(&a)
	ApplyDefaults(&b)
	ApplyDefaults(&b)

	if a.Detectors.Regex != b.Detectors.Regex || a.Detectors.OpenAI != b.Detectors.OpenAI ||
		a.Store != b.Store || a.OpenSearch.Index != b.OpenSearch.Index {
		t.Error("ApplyDefaults is not idempotent")
	}
	if a.Detectors.Similarity.Notify() != b.Detectors.Similarity.Notify() ||
		a.Detectors.Similarity.Block() != b.Detectors.Similarity.Block() {
		t.Error("ApplyDefaults is not idempotent for similarity thresholds")
	}
}

func TestApplyDefaults_ZeroThresholdIsKept(t *testing.T) {
	cfg, err := Parse([]byte(`
detectors:
  similarity:
    notify_threshold: 0
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := cfg.Detectors.Similarity.Notify(); got != 0 {
		t.Errorf("notify threshold = %v, want 0", got)
	}
	if got := cfg.Detectors.Similarity.Block(); got != DefaultSimilarityBlock {
		t.Errorf("block threshold = %v, want %v", got, DefaultSimilarityBlock)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("zero notify threshold should validate: %v", err)
	}
}

func TestFlowMap(t *testing.T) {
	cfg := NewTestConfig().
		WithFlow("code", "code_analysis", "regex").
		WithFlow("fast", "regex").
		Build()

	m := cfg.FlowMap()
	if len(m) != 2 {
		t.Fatalf("got %d flows, want 2", len(m))
	}
	if got := m["code"]; len(got) != 2 || got[0] != "code_analysis" || got[1] != "regex" {
		t.Errorf("code flow = %v", got)
	}
}
