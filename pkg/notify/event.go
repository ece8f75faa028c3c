package notify

import (
	"context"
	"time"

	"aidr-hq/bastion/pkg/verdict"
)

// Service identifies the emitting deployment.
type Service struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Event is one non-allow verdict.
type Event struct {
	TaskID    string                   `json:"task_id"`
	Flow      string                   `json:"flow"`
	Status    verdict.Status           `json:"status"`
	Pipelines []verdict.PipelineResult `json:"pipelines"`

	// Prompt is only set when prompts are configured to be saved.
	Prompt string `json:"prompt,omitempty"`

	Service   Service   `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev *Event) error
	Close(ctx context.Context) error
}

// Publisher accepts events without blocking.
type Publisher interface {
	Emit(ev *Event) bool
}
