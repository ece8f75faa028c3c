package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"aidr-hq/bastion/pkg/detector"
	"aidr-hq/bastion/pkg/flow"
	"aidr-hq/bastion/pkg/notify"
	"aidr-hq/bastion/pkg/telemetry/logging"
	"aidr-hq/bastion/pkg/telemetry/metrics"
	"aidr-hq/bastion/pkg/telemetry/tracing"
	"aidr-hq/bastion/pkg/verdict"
)

// Failure reasons recorded when a detector run is replaced by ALLOW.
const (
	ReasonTimeout  = "timeout"
	ReasonCanceled = "canceled"
	ReasonPanic    = "panic"
)

// DefaultDetectorTimeout bounds each detector run when no timeout is set.
const DefaultDetectorTimeout = 30 * time.Second

// Options configures an Orchestrator.
type Options struct {
	// DetectorTimeout bounds each detector run.
	DetectorTimeout time.Duration

	// SavePrompt includes the prompt in notification events.
	SavePrompt bool

	// Service identifies this deployment in notification events.
	Service notify.Service
}

// Request is one pipeline run.
type Request struct {
	Prompt string

	// Flow defaults to the default flow.
	Flow string

	// TaskID correlates logs and events. Generated when empty.
	TaskID string

	// Language of the prompt when it is source code.
	Language string
}

// Orchestrator executes flows.
type Orchestrator struct {
	flows     atomic.Pointer[flow.Registry]
	opts      Options
	publisher notify.Publisher
	metrics   *metrics.Collector
	tracer    *tracing.Tracer
	logger    *slog.Logger
}

// New creates an orchestrator. publisher, collector and tracer may be nil.
func New(flows *flow.Registry, opts Options, publisher notify.Publisher, collector *metrics.Collector, tracer *tracing.Tracer, logger *slog.Logger) *Orchestrator {
	if opts.DetectorTimeout <= 0 {
		opts.DetectorTimeout = DefaultDetectorTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		opts:      opts,
		publisher: publisher,
		metrics:   collector,
		tracer:    tracer,
		logger:    logger.With("component", "orchestrator"),
	}
	o.flows.Store(flows)
	return o
}

// Swap replaces the flow registry. Runs already started keep the old one.
func (o *Orchestrator) Swap(flows *flow.Registry) {
	o.flows.Store(flows)
	o.logger.Info("flow registry swapped", "flows", flows.Names(), "enabled_detectors", flows.EnabledCount())
}

// Flows returns the current flow registry.
func (o *Orchestrator) Flows() *flow.Registry {
	return o.flows.Load()
}

// ListFlows describes every flow, default first.
func (o *Orchestrator) ListFlows() []verdict.FlowInfo {
	return o.flows.Load().List()
}

// EnabledDetectors returns the number of enabled detectors.
func (o *Orchestrator) EnabledDetectors() int {
	return o.flows.Load().EnabledCount()
}

// Run runs prompt through the named flow.
func (o *Orchestrator) Run(ctx context.Context, prompt, flowName, taskID string) verdict.TaskResult {
	return o.Execute(ctx, Request{Prompt: prompt, Flow: flowName, TaskID: taskID})
}

// Execute runs a request. It never fails: unknown or empty flows yield ALLOW.
func (o *Orchestrator) Execute(ctx context.Context, req Request) verdict.TaskResult {
	if req.Flow == "" {
		req.Flow = flow.DefaultName
	}
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}

	flows := o.flows.Load()
	detectors := flows.Lookup(req.Flow)
	logger := o.logger.With("task_id", req.TaskID, "flow", req.Flow)

	if len(detectors) == 0 {
		if !flows.Has(req.Flow) {
			logger.Warn("unknown flow requested")
		}
		o.metrics.RecordFlow(req.Flow, string(verdict.StatusAllow), 0)
		return verdict.TaskResult{Status: verdict.StatusAllow, Pipelines: []verdict.PipelineResult{}}
	}

	ctx = logging.WithFlow(logging.WithTaskID(ctx, req.TaskID), req.Flow)

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, tracing.SpanFlow, tracing.FlowStart(req.Flow, req.TaskID, len(detectors)))
	defer span.End()

	rc := detector.RunContext{TaskID: req.TaskID, Flow: req.Flow, Language: req.Language}
	results := make([]verdict.PipelineResult, len(detectors))

	var wg sync.WaitGroup
	for i, d := range detectors {
		wg.Add(1)
		go func(i int, d detector.Detector) {
			defer wg.Done()
			results[i] = o.runDetector(ctx, d, req.Prompt, rc)
		}(i, d)
	}
	wg.Wait()

	res := verdict.Combine(results)
	duration := time.Since(start)

	tracing.SetFlowStatus(span, string(res.Status))
	o.metrics.RecordFlow(req.Flow, string(res.Status), duration)

	if res.Status != verdict.StatusAllow && o.publisher != nil {
		o.publisher.Emit(o.event(req, res))
	}

	logger.Info("flow completed",
		"status", res.Status,
		"pipelines", len(res.Pipelines),
		"detectors", len(detectors),
		"duration_ms", duration.Milliseconds(),
	)
	return res
}

func (o *Orchestrator) event(req Request, res verdict.TaskResult) *notify.Event {
	ev := &notify.Event{
		TaskID:    req.TaskID,
		Flow:      req.Flow,
		Status:    res.Status,
		Pipelines: res.Pipelines,
		Service:   o.opts.Service,
		Timestamp: time.Now().UTC(),
	}
	if o.opts.SavePrompt {
		ev.Prompt = req.Prompt
	}
	return ev
}

// runDetector runs d under its own deadline. The detector goroutine is
// abandoned when the deadline passes first; its late result is discarded.
func (o *Orchestrator) runDetector(ctx context.Context, d detector.Detector, prompt string, rc detector.RunContext) verdict.PipelineResult {
	name := d.Name()
	ctx, span := o.tracer.Start(ctx, tracing.SpanDetector, tracing.DetectorStart(rc.Flow, name))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.opts.DetectorTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan verdict.PipelineResult, 1)
	panicked := make(chan any, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				panicked <- p
			}
		}()
		done <- d.Run(ctx, prompt, rc)
	}()

	var (
		res    verdict.PipelineResult
		reason string
		cause  error
	)
	select {
	case res = <-done:
		if err := ctx.Err(); err != nil {
			reason, cause = ctxReason(err), err
		}
	case p := <-panicked:
		reason, cause = ReasonPanic, fmt.Errorf("detector panicked: %v", p)
	case <-ctx.Done():
		reason, cause = ctxReason(ctx.Err()), ctx.Err()
	}
	duration := time.Since(start)

	if reason != "" {
		o.metrics.RecordDetectorFailure(name, reason)
		tracing.SetDetectorFailure(span, reason)
		tracing.SetError(span, cause)
		res = detector.Failed(o.logger, name, rc, cause)
	}
	if res.Name == "" {
		res.Name = name
	}
	if res.TriggeredRules == nil {
		res.TriggeredRules = []verdict.TriggeredRule{}
	}

	o.metrics.RecordDetectorRun(name, string(res.Status), duration)
	tracing.SetDetectorResult(span, string(res.Status), len(res.TriggeredRules))
	return res
}

func ctxReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonCanceled
}
