package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"aidr-hq/bastion/pkg/config"
	"aidr-hq/bastion/pkg/detector"
	"aidr-hq/bastion/pkg/detector/classifier"
	"aidr-hq/bastion/pkg/detector/codeanalysis"
	"aidr-hq/bastion/pkg/detector/llmjudge"
	"aidr-hq/bastion/pkg/detector/regex"
	"aidr-hq/bastion/pkg/detector/similarity"
	"aidr-hq/bastion/pkg/flow"
	"aidr-hq/bastion/pkg/notify"
	"aidr-hq/bastion/pkg/orchestrator"
	"aidr-hq/bastion/pkg/providers/openai"
	"aidr-hq/bastion/pkg/rules"
	"aidr-hq/bastion/pkg/rules/gitsource"
	"aidr-hq/bastion/pkg/segment"
	"aidr-hq/bastion/pkg/store"
	"aidr-hq/bastion/pkg/telemetry/health"
	"aidr-hq/bastion/pkg/telemetry/metrics"
	"aidr-hq/bastion/pkg/telemetry/tracing"
	"aidr-hq/bastion/pkg/vectorindex"
)

// Options controls which parts of the gateway are built.
type Options struct {
	// Version is reported in events, health responses and traces.
	Version string

	// DisableNotify skips every notification sink, including the verdict
	// store. Used by one-shot commands that must not publish.
	DisableNotify bool
}

// Gateway owns every long-lived component of a Bastion instance.
type Gateway struct {
	Config       *config.Config
	Logger       *slog.Logger
	Version      string
	Metrics      *metrics.Collector
	Tracer       *tracing.Tracer
	Health       *health.Checker
	Orchestrator *orchestrator.Orchestrator

	// Store is nil when the verdict store is disabled.
	Store *store.Store

	// Embedder and Index are nil when not configured.
	Embedder *openai.EmbeddingsClient
	Index    *vectorindex.OpenSearch

	judge     *openai.ChatClient
	emitter   *notify.Emitter
	retention *store.Retention
	git       *gitsource.Source
	rulesDir  string

	// static holds every detector that does not change on rule reload.
	static  []detector.Detector
	closers []func() error

	reloadMu sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a gateway from cfg. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		Config:  cfg,
		Logger:  logger,
		Version: opts.Version,
	}

	g.Metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, opts.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	g.Tracer = tracer

	if err := g.initRules(ctx); err != nil {
		g.Close(ctx)
		return nil, err
	}
	g.initProviders()
	g.initStatic(ctx)

	flows, err := g.buildFlows()
	if err != nil {
		g.Close(ctx)
		return nil, err
	}

	var sinks []notify.Sink
	if !opts.DisableNotify {
		sinks, err = g.initSinks()
		if err != nil {
			g.Close(ctx)
			return nil, err
		}
	}
	g.emitter = notify.NewEmitter(notify.Options{
		QueueSize: cfg.Notify.QueueSize,
		Workers:   cfg.Notify.Workers,
	}, g.Metrics, logger, sinks...)

	g.Orchestrator = orchestrator.New(flows, orchestrator.Options{
		DetectorTimeout: cfg.Orchestrator.DetectorTimeout,
		SavePrompt:      cfg.Notify.SavePrompt,
		Service:         notify.Service{Name: cfg.Service.Name, Version: opts.Version},
	}, g.emitter, g.Metrics, g.Tracer, logger)

	g.Health = health.New(0, opts.Version)
	g.Health.RegisterCheck("detectors", health.DetectorsCheck(g.Orchestrator.EnabledDetectors))
	if g.Index != nil {
		g.Health.RegisterCheck("similarity_index", health.IndexCheck(g.Index))
	}
	if g.Embedder != nil {
		g.Health.RegisterCheck("embeddings", health.ProviderCheck(g.Embedder))
	}
	if g.judge != nil {
		g.Health.RegisterCheck("llm_judge", health.ProviderCheck(g.judge))
	}

	logger.Info("gateway initialized",
		"flows", g.Orchestrator.Flows().Names(),
		"detectors_enabled", g.Orchestrator.EnabledDetectors(),
		"sinks", len(sinks),
	)
	return g, nil
}

// initRules resolves the regex rule directory, cloning the rule
// repository first when git sync is enabled.
func (g *Gateway) initRules(ctx context.Context) error {
	rc := g.Config.Detectors.Regex
	g.rulesDir = rc.RulesDir
	if !rc.Git.Enabled {
		return nil
	}

	src, err := gitsource.New(rc.Git, g.Logger)
	if err != nil {
		return fmt.Errorf("failed to create rule git source: %w", err)
	}
	if _, err := src.Sync(ctx); err != nil {
		// A stale checkout is still usable; an empty one yields a disabled
		// regex detector.
		g.Logger.Error("initial rule repository sync failed", "error", err)
	}
	g.git = src
	g.rulesDir = src.RulesDir()
	return nil
}

// initProviders creates the embeddings client and the vector index.
func (g *Gateway) initProviders() {
	cfg := g.Config
	if cfg.Embeddings.BaseURL != "" {
		emb, err := openai.NewEmbeddingsClient(openai.EmbeddingsConfig{
			BaseURL:    cfg.Embeddings.BaseURL,
			APIKey:     cfg.Embeddings.APIKey,
			Model:      cfg.Embeddings.Model,
			Dimension:  cfg.Embeddings.Dimension,
			Timeout:    cfg.Embeddings.Timeout,
			MaxRetries: cfg.Embeddings.MaxRetries,
		})
		if err != nil {
			g.Logger.Error("failed to create embeddings client", "error", err)
		} else {
			g.Embedder = emb
			g.closers = append(g.closers, emb.Close)
		}
	}

	if len(cfg.OpenSearch.Addresses) > 0 {
		idx, err := vectorindex.NewOpenSearch(vectorindex.OpenSearchConfig{
			Addresses:          cfg.OpenSearch.Addresses,
			Username:           cfg.OpenSearch.Username,
			Password:           cfg.OpenSearch.Password,
			Index:              cfg.OpenSearch.Index,
			TopK:               cfg.OpenSearch.TopK,
			InsecureSkipVerify: cfg.OpenSearch.InsecureSkipVerify,
		}, g.Logger)
		if err != nil {
			g.Logger.Error("failed to create OpenSearch client", "error", err)
		} else {
			g.Index = idx
		}
	}
}

// initStatic builds the detectors that do not depend on rule files.
func (g *Gateway) initStatic(ctx context.Context) {
	cfg := g.Config.Detectors
	logger := g.Logger

	// Interface values stay nil when a dependency is missing so that the
	// detectors see a true nil.
	var embedder similarity.Embedder
	if g.Embedder != nil {
		embedder = g.Embedder
	}
	var index vectorindex.Index
	if g.Index != nil {
		index = g.Index
	}

	var scanner codeanalysis.Scanner
	if sg, err := codeanalysis.NewSemgrep(cfg.CodeAnalysis.SemgrepPath); err != nil {
		logger.Warn("static analysis engine unavailable", "path", cfg.CodeAnalysis.SemgrepPath, "error", err)
	} else {
		scanner = sg
	}
	g.static = append(g.static, codeanalysis.New(scanner, codeanalysis.Options{
		RulesDir: cfg.CodeAnalysis.RulesDir,
		TempDir:  cfg.CodeAnalysis.TempDir,
	}, logger))

	var model classifier.Classifier
	if cfg.ML.ModelPath != "" {
		m, err := classifier.LoadONNX(classifier.ONNXConfig{
			ModelPath:         cfg.ML.ModelPath,
			SharedLibraryPath: cfg.ML.SharedLibraryPath,
			InputName:         cfg.ML.InputName,
			OutputName:        cfg.ML.OutputName,
			Dimension:         g.Config.Embeddings.Dimension,
			Threshold:         cfg.ML.Threshold,
			Output:            cfg.ML.Output,
		})
		if err != nil {
			logger.Error("failed to load classifier model", "path", cfg.ML.ModelPath, "error", err)
		} else {
			model = m
			g.closers = append(g.closers, m.Close)
		}
	}
	g.static = append(g.static, classifier.New(embedder, model, logger))

	var completer llmjudge.Completer
	if cfg.OpenAI.APIKey != "" {
		chat, err := openai.NewChatClient(openai.ChatConfig{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Timeout:     cfg.OpenAI.Timeout,
			MaxRetries:  cfg.OpenAI.MaxRetries,
			JSONMode:    true,
		})
		if err != nil {
			logger.Error("failed to create LLM judge client", "error", err)
		} else {
			completer = chat
			g.judge = chat
			g.closers = append(g.closers, chat.Close)
		}
	}
	g.static = append(g.static, llmjudge.New(completer, logger))

	g.static = append(g.static, similarity.New(ctx, embedder, index, segment.New(logger), similarity.Options{
		NotifyThreshold: cfg.Similarity.Notify(),
		BlockThreshold:  cfg.Similarity.Block(),
		BatchSize:       cfg.Similarity.BatchSize,
	}, logger))
}

// buildFlows loads the regex rules and builds a fresh flow registry on top
// of the static detectors.
func (g *Gateway) buildFlows() (*flow.Registry, error) {
	rx, report := regex.Load(g.rulesDir, g.Logger)
	g.Metrics.SetRulesLoaded(detector.NameRegex, rx.RuleCount())
	if report != nil {
		g.Logger.Info("regex rules loaded",
			"dir", report.Dir,
			"files", report.Files,
			"rules", rx.RuleCount(),
			"skipped", report.Skipped,
		)
	}

	registry, err := detector.NewRegistry(append([]detector.Detector{rx}, g.static...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to build detector registry: %w", err)
	}
	return flow.New(registry, g.Config.Flows, g.Logger), nil
}

// initSinks creates the configured notification sinks.
func (g *Gateway) initSinks() ([]notify.Sink, error) {
	cfg := g.Config
	var sinks []notify.Sink

	if len(cfg.Notify.Kafka.BootstrapServers) > 0 {
		k, err := notify.NewKafka(cfg.Notify.Kafka)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka sink: %w", err)
		}
		sinks = append(sinks, k)
	}

	if cfg.Notify.Webhook.URL != "" {
		w, err := notify.NewWebhook(notify.WebhookOptions{
			URL:     cfg.Notify.Webhook.URL,
			Headers: cfg.Notify.Webhook.Headers,
			Timeout: cfg.Notify.Webhook.Timeout,
		})
		if err != nil {
			closeSinks(sinks)
			return nil, fmt.Errorf("failed to create webhook sink: %w", err)
		}
		sinks = append(sinks, w)
	}

	if cfg.Store.Enabled {
		st, err := store.Open(store.Options{Path: cfg.Store.Path, BusyTimeout: cfg.Store.BusyTimeout}, g.Logger)
		if err != nil {
			closeSinks(sinks)
			return nil, fmt.Errorf("failed to open verdict store: %w", err)
		}
		g.Store = st
		g.retention = store.NewRetention(st, cfg.Store.RetentionDays, cfg.Store.PruneSchedule, g.Logger)
		sinks = append(sinks, st)
	}
	return sinks, nil
}

func closeSinks(sinks []notify.Sink) {
	for _, s := range sinks {
		_ = s.Close(context.Background())
	}
}

// Reload rebuilds the regex detector and every flow and swaps them in.
// A reload that finds no valid rules while rules are active is rejected
// and the previous registry stays in place.
func (g *Gateway) Reload() error {
	g.reloadMu.Lock()
	defer g.reloadMu.Unlock()

	flows, err := g.buildFlows()
	if err != nil {
		return err
	}
	if d, ok := flows.Detectors().Get(detector.NameRegex); ok && !d.Enabled() {
		if prev, ok := g.Orchestrator.Flows().Detectors().Get(detector.NameRegex); ok && prev.Enabled() {
			return errors.New("reloaded rule set is empty, keeping previous rules")
		}
	}
	g.Orchestrator.Swap(flows)
	g.Logger.Info("flows reloaded", "flows", flows.Names(), "detectors_enabled", flows.EnabledCount())
	return nil
}

// Start launches background work: the rule watcher, the git poller and
// the retention scheduler. It returns once everything is started.
func (g *Gateway) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	rc := g.Config.Detectors.Regex
	if rc.Watch {
		w, err := rules.NewWatcher(&rules.WatcherConfig{Dirs: []string{g.rulesDir}}, g.Logger)
		if err != nil {
			g.Logger.Error("failed to create rule watcher", "error", err)
		} else {
			g.wg.Add(1)
			go func() {
				defer g.wg.Done()
				defer w.Stop()
				if err := w.Watch(ctx, g.Reload); err != nil {
					g.Logger.Error("rule watcher exited", "error", err)
				}
			}()
		}
	}

	if g.git != nil {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.git.Poll(ctx, rc.Git.PollInterval, g.Reload)
		}()
	}

	if g.retention != nil {
		if err := g.retention.Start(ctx); err != nil {
			return fmt.Errorf("failed to start verdict retention: %w", err)
		}
		g.Logger.Info("verdict retention scheduled", "next_run", g.retention.NextRun())
	}
	return nil
}

// Close stops background work, drains pending notifications and releases
// every resource. It is safe to call on a partially built gateway.
func (g *Gateway) Close(ctx context.Context) error {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
	if g.retention != nil {
		g.retention.Stop()
	}

	var errs []error
	if g.emitter != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, g.Config.Notify.ShutdownTimeout)
		if err := g.emitter.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("notify: %w", err))
		}
		cancel()
	} else if g.Store != nil {
		if err := g.Store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	for _, c := range g.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if g.Tracer != nil {
		if err := g.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}
