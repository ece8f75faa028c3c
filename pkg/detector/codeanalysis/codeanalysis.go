// Package codeanalysis implements the static analysis detector. The prompt
// is treated as source code in the caller supplied language and scanned
// with an external analyzer.
package codeanalysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"aidr-hq/bastion/pkg/detector"
	"aidr-hq/bastion/pkg/verdict"
)

// Detector scans code prompts. Every finding blocks.
type Detector struct {
	scanner  Scanner
	rulesDir string
	tempDir  string
	logger   *slog.Logger
}

// Options configures a Detector.
type Options struct {
	// RulesDir holds optional per-language rule directories.
	RulesDir string

	// TempDir receives snippet files. Empty means the OS temp directory.
	TempDir string
}

// New creates a detector. A nil scanner yields a disabled detector.
func New(scanner Scanner, opts Options, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		scanner:  scanner,
		rulesDir: opts.RulesDir,
		tempDir:  opts.TempDir,
		logger:   logger.With("component", "detector.code_analysis"),
	}
	if scanner == nil {
		d.logger.Warn("no static analyzer available, detector disabled")
	} else {
		d.logger.Info("code analysis ready", "languages", Languages())
	}
	return d
}

// Name implements detector.Detector.
func (d *Detector) Name() string { return detector.NameCodeAnalysis }

// Enabled implements detector.Detector.
func (d *Detector) Enabled() bool { return d.scanner != nil }

// Run implements detector.Detector. Prompts in an unsupported or missing
// language are allowed without invoking the scanner.
func (d *Detector) Run(ctx context.Context, prompt string, rc detector.RunContext) verdict.PipelineResult {
	if d.scanner == nil {
		return verdict.Allow(d.Name())
	}
	lang, ok := resolve(rc.Language, d.rulesDir)
	if !ok {
		d.logger.DebugContext(ctx, "language not supported, skipping scan", "language", rc.Language)
		return verdict.Allow(d.Name())
	}

	findings, err := d.scan(ctx, prompt, lang)
	if err != nil {
		return detector.Failed(d.logger, d.Name(), rc, err)
	}

	triggered := make([]verdict.TriggeredRule, 0, len(findings))
	for _, f := range findings {
		triggered = append(triggered, verdict.TriggeredRule{
			ID:       f.CheckID,
			Name:     f.CheckID,
			Details:  f.Message,
			Severity: f.Severity,
			CWEID:    f.CWEID,
			Action:   verdict.ActionBlock,
		})
	}

	res := verdict.NewResult(d.Name(), triggered)
	d.logger.DebugContext(ctx, "code analysis done",
		"language", lang.Name,
		"findings", len(findings),
		"status", res.Status,
	)
	return res
}

// scan writes the snippet to a temp file with the language's extension,
// scans it and removes it.
func (d *Detector) scan(ctx context.Context, prompt string, lang Language) ([]Finding, error) {
	f, err := os.CreateTemp(d.tempDir, "bastion-snippet-*"+lang.Extension)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(prompt); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	return d.scanner.Scan(ctx, path, lang)
}
