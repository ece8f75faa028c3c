package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"aidr-hq/bastion/pkg/config"
	"aidr-hq/bastion/pkg/detector"
	"aidr-hq/bastion/pkg/flow"
	"aidr-hq/bastion/pkg/notify"
	"aidr-hq/bastion/pkg/telemetry/metrics"
	"aidr-hq/bastion/pkg/telemetry/tracing"
	"aidr-hq/bastion/pkg/verdict"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fixed returns a result with one rule of the given action, or ALLOW.
type fixed struct {
	name   string
	status verdict.Status
	calls  atomic.Int32
}

func (f *fixed) Name() string  { return f.name }
func (f *fixed) Enabled() bool { return true }
func (f *fixed) Run(_ context.Context, _ string, rc detector.RunContext) verdict.PipelineResult {
	f.calls.Add(1)
	if f.status == verdict.StatusAllow {
		return verdict.Allow(f.name)
	}
	return verdict.NewResult(f.name, []verdict.TriggeredRule{{
		Details: f.name + " matched",
		Action:  verdict.Action(f.status),
	}})
}

// stuck ignores its context and blocks far past any test timeout.
type stuck struct{ name string }

func (s stuck) Name() string  { return s.name }
func (s stuck) Enabled() bool { return true }
func (s stuck) Run(context.Context, string, detector.RunContext) verdict.PipelineResult {
	time.Sleep(5 * time.Second)
	return verdict.NewResult(s.name, []verdict.TriggeredRule{{Details: "late", Action: verdict.ActionBlock}})
}

type panicky struct{}

func (panicky) Name() string  { return "panicky" }
func (panicky) Enabled() bool { return true }
func (panicky) Run(context.Context, string, detector.RunContext) verdict.PipelineResult {
	panic("boom")
}

// observer records the run context and waits for cancellation.
type observer struct {
	mu sync.Mutex
	rc detector.RunContext
}

func (o *observer) Name() string  { return "observer" }
func (o *observer) Enabled() bool { return true }
func (o *observer) Run(ctx context.Context, _ string, rc detector.RunContext) verdict.PipelineResult {
	o.mu.Lock()
	o.rc = rc
	o.mu.Unlock()
	<-ctx.Done()
	return verdict.Allow("observer")
}

type recorder struct {
	mu     sync.Mutex
	events []*notify.Event
}

func (r *recorder) Emit(ev *notify.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) all() []*notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*notify.Event(nil), r.events...)
}

func build(t *testing.T, flows []config.FlowConfig, ds ...detector.Detector) *flow.Registry {
	t.Helper()
	reg, err := detector.NewRegistry(ds...)
	if err != nil {
		t.Fatal(err)
	}
	return flow.New(reg, flows, quiet())
}

func TestRunEmptyFlow(t *testing.T) {
	a := &fixed{name: "a", status: verdict.StatusBlock}
	pub := &recorder{}
	o := New(build(t, []config.FlowConfig{{Name: "empty"}}, a), Options{}, pub, nil, nil, quiet())

	res := o.Run(context.Background(), "anything", "empty", "")
	if res.Status != verdict.StatusAllow || res.Pipelines == nil || len(res.Pipelines) != 0 {
		t.Errorf("Run() = %+v, want {allow, []}", res)
	}
	if a.calls.Load() != 0 || len(pub.all()) != 0 {
		t.Error("empty flow must not run detectors or notify")
	}
}

func TestRunUnknownFlow(t *testing.T) {
	a := &fixed{name: "a", status: verdict.StatusBlock}
	o := New(build(t, nil, a), Options{}, nil, nil, nil, quiet())

	res := o.Run(context.Background(), "DROP TABLE", "no-such-flow", "")
	if res.Status != verdict.StatusAllow || len(res.Pipelines) != 0 {
		t.Errorf("Run() = %+v", res)
	}
	if a.calls.Load() != 0 {
		t.Error("unknown flow invoked a detector")
	}
}

func TestRunAggregates(t *testing.T) {
	allow := &fixed{name: "allow", status: verdict.StatusAllow}
	notifyD := &fixed{name: "notify", status: verdict.StatusNotify}
	block := &fixed{name: "block", status: verdict.StatusBlock}
	pub := &recorder{}
	o := New(build(t, nil, allow, notifyD, block), Options{
		Service: notify.Service{Name: "bastion", Version: "1.0.0"},
	}, pub, nil, nil, quiet())

	res := o.Run(context.Background(), "secret prompt", "", "task-42")
	if res.Status != verdict.StatusBlock {
		t.Errorf("status = %s, want block", res.Status)
	}
	if len(res.Pipelines) != 2 || res.Pipelines[0].Name != "notify" || res.Pipelines[1].Name != "block" {
		t.Fatalf("pipelines = %+v", res.Pipelines)
	}

	events := pub.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.TaskID != "task-42" || ev.Flow != flow.DefaultName || ev.Status != verdict.StatusBlock {
		t.Errorf("event = %+v", ev)
	}
	if ev.Prompt != "" {
		t.Error("prompt must not be sent unless saving prompts is enabled")
	}
	if ev.Service.Version != "1.0.0" || len(ev.Pipelines) != 2 {
		t.Errorf("event = %+v", ev)
	}
}

func TestSavePromptAndGeneratedTaskID(t *testing.T) {
	pub := &recorder{}
	o := New(build(t, nil, &fixed{name: "n", status: verdict.StatusNotify}),
		Options{SavePrompt: true}, pub, nil, nil, quiet())

	o.Run(context.Background(), "keep me", "default", "")
	events := pub.all()
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Prompt != "keep me" {
		t.Errorf("prompt = %q", events[0].Prompt)
	}
	if _, err := uuid.Parse(events[0].TaskID); err != nil {
		t.Errorf("generated task id %q is not a uuid", events[0].TaskID)
	}
}

func TestAllowDoesNotNotify(t *testing.T) {
	pub := &recorder{}
	o := New(build(t, nil, &fixed{name: "a", status: verdict.StatusAllow}), Options{}, pub, nil, nil, quiet())

	res := o.Run(context.Background(), "hello", "default", "")
	if res.Status != verdict.StatusAllow || len(res.Pipelines) != 0 {
		t.Errorf("Run() = %+v", res)
	}
	if len(pub.all()) != 0 {
		t.Error("ALLOW produced an event")
	}
}

func TestDetectorTimeout(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{}, reg)
	notifyD := &fixed{name: "notify", status: verdict.StatusNotify}
	o := New(build(t, nil, stuck{name: "slow"}, notifyD),
		Options{DetectorTimeout: 50 * time.Millisecond}, nil, collector, nil, quiet())

	start := time.Now()
	res := o.Run(context.Background(), "x", "default", "")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("run took %v, detector timeout not enforced", elapsed)
	}
	if res.Status != verdict.StatusNotify || len(res.Pipelines) != 1 || res.Pipelines[0].Name != "notify" {
		t.Errorf("Run() = %+v", res)
	}

	expected := `
# HELP bastion_detector_failures_total Detector runs replaced by ALLOW after a failure
# TYPE bastion_detector_failures_total counter
bastion_detector_failures_total{detector="slow",reason="timeout"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "bastion_detector_failures_total"); err != nil {
		t.Error(err)
	}
}

func TestDetectorPanic(t *testing.T) {
	block := &fixed{name: "block", status: verdict.StatusBlock}
	o := New(build(t, nil, panicky{}, block), Options{}, nil, nil, nil, quiet())

	res := o.Run(context.Background(), "x", "default", "")
	if res.Status != verdict.StatusBlock || len(res.Pipelines) != 1 || res.Pipelines[0].Name != "block" {
		t.Errorf("Run() = %+v", res)
	}
}

func TestCallerCancellation(t *testing.T) {
	obs := &observer{}
	o := New(build(t, []config.FlowConfig{{Name: "watch", Detectors: []string{"observer"}}}, obs),
		Options{DetectorTimeout: 10 * time.Second}, nil, nil, nil, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := o.Execute(ctx, Request{Prompt: "p", Flow: "watch", TaskID: "t1", Language: "python"})
	if time.Since(start) > 2*time.Second {
		t.Fatal("cancellation did not reach the detector")
	}
	if res.Status != verdict.StatusAllow {
		t.Errorf("status = %s", res.Status)
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.rc.TaskID != "t1" || obs.rc.Flow != "watch" || obs.rc.Language != "python" {
		t.Errorf("run context = %+v", obs.rc)
	}
}

func TestRunIsStable(t *testing.T) {
	o := New(build(t, nil,
		&fixed{name: "a", status: verdict.StatusNotify},
		&fixed{name: "b", status: verdict.StatusBlock},
		&fixed{name: "c", status: verdict.StatusNotify},
	), Options{}, nil, nil, nil, quiet())

	for i := 0; i < 20; i++ {
		res := o.Run(context.Background(), "x", "", "")
		if len(res.Pipelines) != 3 || res.Pipelines[0].Name != "a" || res.Pipelines[1].Name != "b" || res.Pipelines[2].Name != "c" {
			t.Fatalf("iteration %d: pipelines out of flow order: %+v", i, res.Pipelines)
		}
	}
}

func TestSwap(t *testing.T) {
	o := New(build(t, nil, &fixed{name: "a", status: verdict.StatusAllow}), Options{}, nil, nil, nil, quiet())
	if o.EnabledDetectors() != 1 {
		t.Fatalf("EnabledDetectors() = %d", o.EnabledDetectors())
	}

	o.Swap(build(t, []config.FlowConfig{{Name: "strict", Detectors: []string{"b"}}},
		&fixed{name: "b", status: verdict.StatusBlock},
	))

	flows := o.ListFlows()
	if len(flows) != 2 || flows[0].FlowName != "default" || flows[1].FlowName != "strict" {
		t.Errorf("ListFlows() = %+v", flows)
	}
	if res := o.Run(context.Background(), "x", "strict", ""); res.Status != verdict.StatusBlock {
		t.Errorf("swapped flow not used: %+v", res)
	}
}

func TestSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tracer := tracing.NewWithProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	o := New(build(t, nil,
		&fixed{name: "a", status: verdict.StatusAllow},
		&fixed{name: "b", status: verdict.StatusBlock},
	), Options{}, nil, nil, tracer, quiet())

	o.Run(context.Background(), "x", "", "")

	var flows, detectors int
	for _, s := range rec.Ended() {
		switch s.Name() {
		case tracing.SpanFlow:
			flows++
		case tracing.SpanDetector:
			detectors++
		}
	}
	if flows != 1 || detectors != 2 {
		t.Errorf("spans: %d flow, %d detector; want 1 and 2", flows, detectors)
	}
}
