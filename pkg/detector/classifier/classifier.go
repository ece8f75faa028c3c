// Package classifier implements the ML detector: the prompt is embedded and
// the vector is scored by a pre-trained binary classifier.
package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"aidr-hq/bastion/pkg/detector"
	"aidr-hq/bastion/pkg/verdict"
)

// Details is the triggered rule description of a positive prediction.
const Details = "ML Pipeline detected malicious prompt"

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Classifier decides whether an embedding is malicious.
type Classifier interface {
	Predict(vector []float32) (bool, error)
}

// Detector is the ML detector.
type Detector struct {
	embedder   Embedder
	classifier Classifier
	logger     *slog.Logger
}

// New creates a detector. It is disabled unless both embedder and
// classifier are present.
func New(embedder Embedder, classifier Classifier, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		embedder:   embedder,
		classifier: classifier,
		logger:     logger.With("component", "detector.ml"),
	}
	switch {
	case embedder == nil:
		d.logger.Warn("no embedder configured, detector disabled")
	case classifier == nil:
		d.logger.Warn("no classifier model loaded, detector disabled")
	}
	return d
}

// Name implements detector.Detector.
func (d *Detector) Name() string { return detector.NameML }

// Enabled implements detector.Detector.
func (d *Detector) Enabled() bool { return d.embedder != nil && d.classifier != nil }

// Run implements detector.Detector.
func (d *Detector) Run(ctx context.Context, prompt string, rc detector.RunContext) verdict.PipelineResult {
	if !d.Enabled() {
		return verdict.Allow(d.Name())
	}

	vector, err := d.embedder.Embed(ctx, prompt)
	if err != nil {
		return detector.Failed(d.logger, d.Name(), rc, fmt.Errorf("embedding failed: %w", err))
	}
	if len(vector) == 0 {
		return detector.Failed(d.logger, d.Name(), rc, fmt.Errorf("embedding is empty"))
	}
	if err := ctx.Err(); err != nil {
		return detector.Failed(d.logger, d.Name(), rc, err)
	}

	malicious, err := d.classifier.Predict(vector)
	if err != nil {
		return detector.Failed(d.logger, d.Name(), rc, fmt.Errorf("prediction failed: %w", err))
	}
	if !malicious {
		return verdict.Allow(d.Name())
	}

	d.logger.InfoContext(ctx, "malicious prompt detected")
	return verdict.NewResult(d.Name(), []verdict.TriggeredRule{{
		ID:      detector.NameML,
		Name:    detector.NameML,
		Details: Details,
		Action:  verdict.ActionBlock,
	}})
}
