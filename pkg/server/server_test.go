package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aidr-hq/bastion/pkg/api/handlers"
	"aidr-hq/bastion/pkg/config"
	"aidr-hq/bastion/pkg/orchestrator"
	"aidr-hq/bastion/pkg/telemetry/health"
	"aidr-hq/bastion/pkg/telemetry/metrics"
	"aidr-hq/bastion/pkg/verdict"
)

type stubRunner struct{}

func (stubRunner) Execute(context.Context, orchestrator.Request) verdict.TaskResult {
	return verdict.TaskResult{Status: verdict.StatusAllow}
}

func (stubRunner) ListFlows() []verdict.FlowInfo { return nil }

func newTestServer(t *testing.T, listen string) *Server {
	t.Helper()
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.Server.ListenAddress = listen
	cfg.Server.ShutdownTimeout = time.Second

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	checker := health.New(time.Second, "test")
	checker.RegisterCheck("detectors", health.DetectorsCheck(func() int { return 1 }))
	h := handlers.New(stubRunner{}, nil, cfg.Server.MaxBodyBytes, logger)

	return New(&cfg.Server, &cfg.Telemetry.Metrics, h, checker, collector, nil, logger)
}

func TestHandler_Routes(t *testing.T) {
	h := newTestServer(t, "127.0.0.1:0").Handler()

	tests := []struct {
		method   string
		path     string
		body     string
		wantCode int
	}{
		{http.MethodPost, RouteRunPipeline, `{"prompt":"hello"}`, http.StatusOK},
		{http.MethodGet, RouteRunPipeline, "", http.StatusMethodNotAllowed},
		{http.MethodGet, RouteFlows, "", http.StatusOK},
		{http.MethodGet, RouteVerdicts, "", http.StatusServiceUnavailable},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}
}

func TestHandler_MetricsCountRequests(t *testing.T) {
	h := newTestServer(t, "127.0.0.1:0").Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, RouteFlows, nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `bastion_http_requests_total{code="200",method="GET",route="/api/v1/flows"} 1`) {
		t.Errorf("metrics output missing flows request:\n%s", w.Body)
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := newTestServer(t, "127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
	if s.IsRunning() {
		t.Error("server still marked running")
	}
}

func TestStart_TLSMissingFiles(t *testing.T) {
	s := newTestServer(t, "127.0.0.1:0")
	s.config.TLS = config.TLSConfig{Enabled: true, CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected TLS configuration error")
	}
}
