// Package detector defines the contract every detection strategy implements
// and the registry the flow layer resolves detector names against.
package detector

import (
	"context"
	"fmt"
	"log/slog"

	"aidr-hq/bastion/pkg/verdict"
)

// Stable detector names.
const (
	NameRegex        = "regex"
	NameCodeAnalysis = "code_analysis"
	NameML           = "ml"
	NameOpenAI       = "openai"
	NameSimilarity   = "similarity"
)

// RunContext carries request scoped values a detector may need.
type RunContext struct {
	// TaskID correlates logs and notifications for one request.
	TaskID string

	// Flow is the name of the flow being run.
	Flow string

	// Language selects the ruleset of language-aware detectors.
	Language string
}

// Detector evaluates a prompt with one detection strategy.
//
// Run must not return errors or panic: internal failures (timeouts,
// malformed responses, subprocess failures) yield an ALLOW result with no
// triggered rules and a logged cause. Enabled is fixed at construction; a
// disabled detector is never part of a flow.
type Detector interface {
	Name() string
	Enabled() bool
	Run(ctx context.Context, prompt string, rc RunContext) verdict.PipelineResult
}

// Failed logs a degraded run and returns the ALLOW result that replaces it.
func Failed(logger *slog.Logger, name string, rc RunContext, err error) verdict.PipelineResult {
	logger.Warn("detector run failed",
		"detector", name,
		"task_id", rc.TaskID,
		"flow", rc.Flow,
		"error", err,
	)
	return verdict.Allow(name)
}

// Registry is an ordered set of detectors keyed by name.
type Registry struct {
	order  []string
	byName map[string]Detector
}

// NewRegistry creates a registry holding ds in order.
func NewRegistry(ds ...Detector) (*Registry, error) {
	r := &Registry{byName: make(map[string]Detector)}
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends d. Names must be unique.
func (r *Registry) Register(d Detector) error {
	if d == nil {
		return fmt.Errorf("detector cannot be nil")
	}
	name := d.Name()
	if name == "" {
		return fmt.Errorf("detector name cannot be empty")
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("detector %q already registered", name)
	}
	r.order = append(r.order, name)
	r.byName[name] = d
	return nil
}

// Get returns the named detector.
func (r *Registry) Get(name string) (Detector, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// All returns every detector in registration order.
func (r *Registry) All() []Detector {
	out := make([]Detector, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Enabled returns the enabled detectors in registration order.
func (r *Registry) Enabled() []Detector {
	var out []Detector
	for _, name := range r.order {
		if d := r.byName[name]; d.Enabled() {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of registered detectors.
func (r *Registry) Len() int {
	return len(r.order)
}
