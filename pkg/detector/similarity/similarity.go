// Package similarity implements the similarity detector: every sentence of
// the prompt is embedded and matched against an index of known attack
// prompts.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"aidr-hq/bastion/pkg/detector"
	"aidr-hq/bastion/pkg/vectorindex"
	"aidr-hq/bastion/pkg/verdict"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Segmenter splits a prompt into sentences.
type Segmenter interface {
	Split(text string) []string
}

// Options configures thresholds and batching.
type Options struct {
	// NotifyThreshold is the score a neighbor must exceed to be reported.
	NotifyThreshold float64

	// BlockThreshold is the score at or above which a match blocks.
	BlockThreshold float64

	// BatchSize is the number of sentences searched concurrently.
	BatchSize int
}

// Detector matches prompt sentences against known attacks.
type Detector struct {
	embedder  Embedder
	index     vectorindex.Index
	segmenter Segmenter
	opts      Options
	enabled   bool
	logger    *slog.Logger
}

// New creates a detector. It is enabled only when embedder and index are
// present and the index exists.
func New(ctx context.Context, embedder Embedder, index vectorindex.Index, segmenter Segmenter, opts Options, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	d := &Detector{
		embedder:  embedder,
		index:     index,
		segmenter: segmenter,
		opts:      opts,
		logger:    logger.With("component", "detector.similarity"),
	}

	switch {
	case embedder == nil:
		d.logger.Warn("no embedder configured, detector disabled")
	case index == nil:
		d.logger.Warn("no vector index configured, detector disabled")
	case segmenter == nil:
		d.logger.Warn("no sentence segmenter configured, detector disabled")
	default:
		exists, err := index.Exists(ctx)
		switch {
		case err != nil:
			d.logger.Error("failed to check similarity index, detector disabled", "error", err)
		case !exists:
			d.logger.Warn("similarity index does not exist, detector disabled")
		default:
			d.enabled = true
			d.logger.Info("similarity detector ready",
				"notify_threshold", opts.NotifyThreshold,
				"block_threshold", opts.BlockThreshold,
			)
		}
	}
	return d
}

// Name implements detector.Detector.
func (d *Detector) Name() string { return detector.NameSimilarity }

// Enabled implements detector.Detector.
func (d *Detector) Enabled() bool { return d.enabled }

// Match is a neighbor that passed the notify threshold.
type Match struct {
	vectorindex.Neighbor
	Action verdict.Action
}

// Run implements detector.Detector.
func (d *Detector) Run(ctx context.Context, prompt string, rc detector.RunContext) verdict.PipelineResult {
	if !d.enabled {
		return verdict.Allow(d.Name())
	}

	sentences := d.segmenter.Split(prompt)
	var matches []Match
	for start := 0; start < len(sentences); start += d.opts.BatchSize {
		end := min(start+d.opts.BatchSize, len(sentences))
		batch, err := d.searchBatch(ctx, sentences[start:end])
		if err != nil {
			return detector.Failed(d.logger, d.Name(), rc, err)
		}
		matches = append(matches, batch...)
	}

	rules := Dedupe(matches)
	d.logger.DebugContext(ctx, "similarity search done",
		"sentences", len(sentences),
		"matches", len(rules),
	)
	return verdict.NewResult(d.Name(), rules)
}

// searchBatch embeds and searches the sentences of one batch concurrently.
// Matches are returned in sentence order.
func (d *Detector) searchBatch(ctx context.Context, batch []string) ([]Match, error) {
	results := make([][]Match, len(batch))
	errs := make([]error, len(batch))

	var wg sync.WaitGroup
	for i, sentence := range batch {
		wg.Add(1)
		go func(i int, sentence string) {
			defer wg.Done()
			results[i], errs[i] = d.search(ctx, sentence)
		}(i, sentence)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	var out []Match
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (d *Detector) search(ctx context.Context, sentence string) ([]Match, error) {
	vector, err := d.embedder.Embed(ctx, sentence)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	neighbors, err := d.index.Search(ctx, vector)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	var out []Match
	for _, n := range neighbors {
		if n.Score <= d.opts.NotifyThreshold {
			continue
		}
		action := verdict.ActionNotify
		if n.Score >= d.opts.BlockThreshold {
			action = verdict.ActionBlock
		}
		out = append(out, Match{Neighbor: n, Action: action})
	}
	return out, nil
}

// Dedupe keeps one match per document ID, the one with the highest score,
// and returns them as triggered rules in first-seen order.
func Dedupe(matches []Match) []verdict.TriggeredRule {
	best := make(map[string]int, len(matches))
	var order []string
	kept := make([]Match, 0, len(matches))

	for _, m := range matches {
		i, seen := best[m.ID]
		if !seen {
			best[m.ID] = len(kept)
			order = append(order, m.ID)
			kept = append(kept, m)
			continue
		}
		if m.Score > kept[i].Score {
			kept[i] = m
		}
	}

	rules := make([]verdict.TriggeredRule, 0, len(order))
	for _, id := range order {
		m := kept[best[id]]
		score := m.Score
		rules = append(rules, verdict.TriggeredRule{
			ID:      m.ID,
			Name:    m.Category,
			Details: m.Details,
			Body:    m.Text,
			Action:  m.Action,
			Score:   &score,
		})
	}
	return rules
}
