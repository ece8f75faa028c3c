package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"aidr-hq/bastion/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector(&config.MetricsConfig{Namespace: "bastion"}, prometheus.NewRegistry())
}

func TestCollector_DetectorMetrics(t *testing.T) {
	c := testCollector(t)

	c.RecordDetectorRun("regex", "block", 2*time.Millisecond)
	c.RecordDetectorRun("regex", "block", 3*time.Millisecond)
	c.RecordDetectorRun("regex", "allow", time.Millisecond)
	c.RecordDetectorFailure("openai", "timeout")

	if got := testutil.ToFloat64(c.detectorRuns.WithLabelValues("regex", "block")); got != 2 {
		t.Errorf("regex block runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.detectorFailures.WithLabelValues("openai", "timeout")); got != 1 {
		t.Errorf("openai timeouts = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.detectorDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestCollector_ExpositionNames(t *testing.T) {
	c := testCollector(t)
	c.RecordFlow("default", "notify", time.Second)
	c.RecordNotify("kafka", "ok")
	c.RecordNotifyDropped()
	c.SetRulesLoaded("regex", 12)

	expected := `
# HELP bastion_rules_loaded Rules currently loaded per detector
# TYPE bastion_rules_loaded gauge
bastion_rules_loaded{detector="regex"} 12
`
	if err := testutil.CollectAndCompare(c.rulesLoaded, strings.NewReader(expected), "bastion_rules_loaded"); err != nil {
		t.Error(err)
	}

	for _, name := range []string{
		"bastion_flow_requests_total",
		"bastion_flow_duration_seconds",
		"bastion_notify_events_total",
		"bastion_notify_dropped_total",
	} {
		if n, err := testutil.GatherAndCount(c.Registry(), name); err != nil || n == 0 {
			t.Errorf("metric %s not exported (n=%d, err=%v)", name, n, err)
		}
	}
}

func TestCollector_FlowCardinality(t *testing.T) {
	c := testCollector(t)
	c.flowLabels = NewCardinalityLimiter(2)

	c.RecordFlow("a", "allow", time.Millisecond)
	c.RecordFlow("b", "allow", time.Millisecond)
	c.RecordFlow("c", "allow", time.Millisecond)
	c.RecordFlow("a", "allow", time.Millisecond)

	if got := testutil.ToFloat64(c.flowRequests.WithLabelValues("a", "allow")); got != 2 {
		t.Errorf("flow a = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.flowRequests.WithLabelValues(OtherLabel, "allow")); got != 1 {
		t.Errorf("flow other = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	disabled := false
	c := NewCollector(&config.MetricsConfig{Enabled: &disabled}, nil)
	c.RecordDetectorRun("regex", "block", time.Millisecond)
	c.RecordNotifyDropped()

	if got := testutil.ToFloat64(c.detectorRuns.WithLabelValues("regex", "block")); got != 0 {
		t.Errorf("disabled collector recorded %v runs", got)
	}

	var nilCollector *Collector
	nilCollector.RecordFlow("default", "allow", time.Millisecond)
	nilCollector.RecordHTTPRequest("/x", "GET", "200")
}

func TestCollector_Handler(t *testing.T) {
	c := testCollector(t)
	c.RecordHTTPRequest("/api/v1/run_pipeline", "POST", "200")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(body), `bastion_http_requests_total{code="200",method="POST",route="/api/v1/run_pipeline"} 1`) {
		t.Errorf("metric missing from exposition:\n%s", body)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	l := NewCardinalityLimiter(2)
	if !l.Allow("a") || !l.Allow("b") || !l.Allow("a") {
		t.Fatal("values under the limit should be allowed")
	}
	if l.Allow("c") {
		t.Error("value over the limit should be rejected")
	}
	if l.Count() != 2 {
		t.Errorf("Count() = %d", l.Count())
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := testCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.RecordDetectorRun("similarity", "notify", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(c.detectorRuns.WithLabelValues("similarity", "notify")); got != 1000 {
		t.Errorf("runs = %v, want 1000", got)
	}
}
