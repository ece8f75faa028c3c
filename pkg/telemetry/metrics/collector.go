package metrics

import (
	"sync"
	"time"

	"aidr-hq/bastion/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OtherLabel replaces label values beyond the cardinality limit.
const OtherLabel = "other"

// Collector owns every pipeline metric and the registry they live in.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	detectorRuns     *prometheus.CounterVec
	detectorDuration *prometheus.HistogramVec
	detectorFailures *prometheus.CounterVec

	flowRequests *prometheus.CounterVec
	flowDuration *prometheus.HistogramVec

	notifyEvents  *prometheus.CounterVec
	notifyDropped prometheus.Counter

	rulesLoaded *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec

	flowLabels *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics. If registry
// is nil a fresh registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: cfg.Subsystem, Name: name, Help: help}
	}
	// Detector latencies range from sub-millisecond regex scans to
	// multi-second LLM calls.
	buckets := []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

	c := &Collector{
		enabled:    cfg.IsEnabled(),
		registry:   registry,
		flowLabels: NewCardinalityLimiter(1000),

		detectorRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("detector_runs_total", "Detector runs by detector and status")),
			[]string{"detector", "status"},
		),
		detectorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: cfg.Subsystem,
				Name:      "detector_duration_seconds",
				Help:      "Detector run duration in seconds",
				Buckets:   buckets,
			},
			[]string{"detector"},
		),
		detectorFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("detector_failures_total", "Detector runs replaced by ALLOW after a failure")),
			[]string{"detector", "reason"},
		),
		flowRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("flow_requests_total", "Flow runs by flow and final status")),
			[]string{"flow", "status"},
		),
		flowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: cfg.Subsystem,
				Name:      "flow_duration_seconds",
				Help:      "Flow run duration in seconds",
				Buckets:   buckets,
			},
			[]string{"flow"},
		),
		notifyEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("notify_events_total", "Notification deliveries by sink and result")),
			[]string{"sink", "result"},
		),
		notifyDropped: prometheus.NewCounter(
			prometheus.CounterOpts(opts("notify_dropped_total", "Notification events dropped because the queue was full")),
		),
		rulesLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts(opts("rules_loaded", "Rules currently loaded per detector")),
			[]string{"detector"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("http_requests_total", "API requests by route, method and status code")),
			[]string{"route", "method", "code"},
		),
	}

	registry.MustRegister(
		c.detectorRuns,
		c.detectorDuration,
		c.detectorFailures,
		c.flowRequests,
		c.flowDuration,
		c.notifyEvents,
		c.notifyDropped,
		c.rulesLoaded,
		c.httpRequests,
	)
	return c
}

func (c *Collector) active() bool {
	return c != nil && c.enabled
}

// RecordDetectorRun records one detector run and its status.
func (c *Collector) RecordDetectorRun(detector, status string, duration time.Duration) {
	if !c.active() {
		return
	}
	c.detectorRuns.WithLabelValues(detector, status).Inc()
	c.detectorDuration.WithLabelValues(detector).Observe(duration.Seconds())
}

// RecordDetectorFailure records a run that was replaced by ALLOW.
// Reasons are "timeout", "canceled" and "panic".
func (c *Collector) RecordDetectorFailure(detector, reason string) {
	if !c.active() {
		return
	}
	c.detectorFailures.WithLabelValues(detector, reason).Inc()
}

// RecordFlow records a completed flow run.
func (c *Collector) RecordFlow(flow, status string, duration time.Duration) {
	if !c.active() {
		return
	}
	if !c.flowLabels.Allow(flow) {
		flow = OtherLabel
	}
	c.flowRequests.WithLabelValues(flow, status).Inc()
	c.flowDuration.WithLabelValues(flow).Observe(duration.Seconds())
}

// RecordNotify records a sink delivery; result is "ok" or "error".
func (c *Collector) RecordNotify(sink, result string) {
	if !c.active() {
		return
	}
	c.notifyEvents.WithLabelValues(sink, result).Inc()
}

// RecordNotifyDropped records an event dropped on a full queue.
func (c *Collector) RecordNotifyDropped() {
	if !c.active() {
		return
	}
	c.notifyDropped.Inc()
}

// SetRulesLoaded sets the loaded rule count of a detector.
func (c *Collector) SetRulesLoaded(detector string, n int) {
	if !c.active() {
		return
	}
	c.rulesLoaded.WithLabelValues(detector).Set(float64(n))
}

// RecordHTTPRequest records a served API request.
func (c *Collector) RecordHTTPRequest(route, method, code string) {
	if !c.active() {
		return
	}
	c.httpRequests.WithLabelValues(route, method, code).Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value
// already exists or if the limit has not been reached yet.
func (cl *CardinalityLimiter) Allow(label string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[label]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[label]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[label] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
