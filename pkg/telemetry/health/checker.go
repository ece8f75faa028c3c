package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"aidr-hq/bastion/pkg/providers"
)

// Status values reported by checks and probes.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc returns nil when the component is healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// HealthStatus is the body of a probe response.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ErrNoDetectors is reported when every detector is disabled.
var ErrNoDetectors = errors.New("no detector is enabled")

// Checker runs named readiness checks.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]CheckFunc
	checkTimeout time.Duration
	version      string
}

// New creates a checker. A zero timeout defaults to 5 seconds per check.
func New(checkTimeout time.Duration, version string) *Checker {
	if checkTimeout == 0 {
		checkTimeout = 5 * time.Second
	}
	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
		version:      version,
	}
}

// RegisterCheck registers or replaces a named check.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// ListChecks returns the registered check names, sorted.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckLiveness reports that the process is alive.
func (c *Checker) CheckLiveness(context.Context) HealthStatus {
	return HealthStatus{Status: StatusOK, Version: c.version, Timestamp: time.Now()}
}

// CheckReadiness runs every check concurrently and aggregates the results.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := c.runCheck(ctx, check)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	status := StatusReady
	for _, r := range results {
		if r.Status == StatusUnhealthy {
			status = StatusDegraded
		}
	}
	return HealthStatus{
		Status:    status,
		Version:   c.version,
		Checks:    results,
		Timestamp: time.Now(),
	}
}

func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- check(checkCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return CheckResult{Status: StatusUnhealthy, Message: err.Error(), Duration: time.Since(start)}
		}
		return CheckResult{Status: StatusOK, Duration: time.Since(start)}
	case <-checkCtx.Done():
		return CheckResult{Status: StatusUnhealthy, Message: "health check timeout", Duration: time.Since(start)}
	}
}

// Exister reports whether a backing index exists.
type Exister interface {
	Exists(ctx context.Context) (bool, error)
}

// IndexCheck fails when the index is unreachable or missing.
func IndexCheck(index Exister) CheckFunc {
	return func(ctx context.Context) error {
		ok, err := index.Exists(ctx)
		if err != nil {
			return fmt.Errorf("index unreachable: %w", err)
		}
		if !ok {
			return errors.New("index does not exist")
		}
		return nil
	}
}

// DetectorsCheck fails when enabled reports zero detectors.
func DetectorsCheck(enabled func() int) CheckFunc {
	return func(context.Context) error {
		if enabled() == 0 {
			return ErrNoDetectors
		}
		return nil
	}
}

// ProviderReporter exposes the request health of an outbound HTTP client.
type ProviderReporter interface {
	Health() providers.ProviderHealth
}

// ProviderCheck fails once the provider has been marked unhealthy after
// consecutive failed requests. A later successful request clears it.
func ProviderCheck(p ProviderReporter) CheckFunc {
	return func(context.Context) error {
		h := p.Health()
		if h.IsHealthy {
			return nil
		}
		if h.LastError != nil {
			return fmt.Errorf("%d consecutive failures: %w", h.ConsecutiveFailures, h.LastError)
		}
		return fmt.Errorf("%d consecutive failures", h.ConsecutiveFailures)
	}
}
