package verdict

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the outcome of a detector run or of a whole task.
// Statuses are totally ordered by severity: ALLOW < NOTIFY < BLOCK.
type Status string

const (
	// StatusAllow means nothing was detected.
	StatusAllow Status = "allow"

	// StatusNotify means something suspicious was detected and should be reported.
	StatusNotify Status = "notify"

	// StatusBlock means the prompt must not be forwarded.
	StatusBlock Status = "block"
)

// Action is the action a rule requests when it matches.
type Action string

const (
	// ActionNotify reports the match without blocking.
	ActionNotify Action = "notify"

	// ActionBlock blocks the prompt.
	ActionBlock Action = "block"
)

// ParseAction maps a rule "response" value to an Action.
// Any value other than "block" or "notify" maps to ActionNotify.
func ParseAction(s string) Action {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ActionBlock):
		return ActionBlock
	default:
		return ActionNotify
	}
}

// ParseStatus parses a status string case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusAllow:
		return StatusAllow, nil
	case StatusNotify:
		return StatusNotify, nil
	case StatusBlock:
		return StatusBlock, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Status returns the status an action implies.
func (a Action) Status() Status {
	if a == ActionBlock {
		return StatusBlock
	}
	return StatusNotify
}

// severity ranks statuses; unknown values rank as ALLOW.
func (s Status) severity() int {
	switch s {
	case StatusBlock:
		return 2
	case StatusNotify:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as other.
func (s Status) AtLeast(other Status) bool {
	return s.severity() >= other.severity()
}

// TriggeredRule is one match produced by a detector during one run.
type TriggeredRule struct {
	// Details is a human readable description of the match.
	Details string `json:"details"`

	// Action is the action requested by the match.
	Action Action `json:"action"`

	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name,omitempty"`
	Body     string   `json:"body,omitempty"`
	Severity string   `json:"severity,omitempty"`
	CWEID    string   `json:"cwe_id,omitempty"`
	Score    *float64 `json:"score,omitempty"`
}

// PipelineResult is the outcome of one detector for one request.
type PipelineResult struct {
	Status         Status          `json:"status"`
	Name           string          `json:"name"`
	TriggeredRules []TriggeredRule `json:"triggered_rules"`
}

// MarshalJSON renders a nil rule list as an empty array.
func (r PipelineResult) MarshalJSON() ([]byte, error) {
	type alias PipelineResult
	if r.TriggeredRules == nil {
		r.TriggeredRules = []TriggeredRule{}
	}
	return json.Marshal(alias(r))
}

// Allow returns an ALLOW result with no triggered rules for the named detector.
func Allow(name string) PipelineResult {
	return PipelineResult{
		Status:         StatusAllow,
		Name:           name,
		TriggeredRules: []TriggeredRule{},
	}
}

// NewResult builds a result whose status is derived from the triggered rules.
func NewResult(name string, rules []TriggeredRule) PipelineResult {
	if rules == nil {
		rules = []TriggeredRule{}
	}
	return PipelineResult{
		Status:         FromRules(rules),
		Name:           name,
		TriggeredRules: rules,
	}
}

// TaskResult is the aggregated, request level outcome.
// Pipelines never contains an ALLOW entry.
type TaskResult struct {
	Status    Status           `json:"status"`
	Pipelines []PipelineResult `json:"pipelines"`
}

// MarshalJSON renders a nil pipeline list as an empty array.
func (t TaskResult) MarshalJSON() ([]byte, error) {
	type alias TaskResult
	if t.Pipelines == nil {
		t.Pipelines = []PipelineResult{}
	}
	return json.Marshal(alias(t))
}

// DetectorInfo describes one detector of a flow.
type DetectorInfo struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// FlowInfo describes a flow and its detectors.
type FlowInfo struct {
	FlowName  string         `json:"flow_name"`
	Pipelines []DetectorInfo `json:"pipelines"`
}
