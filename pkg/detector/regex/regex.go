// Package regex implements the rule based regular expression detector.
package regex

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"aidr-hq/bastion/pkg/detector"
	"aidr-hq/bastion/pkg/rules"
	"aidr-hq/bastion/pkg/verdict"
)

// flags makes every rule case-insensitive with "." matching newlines.
const flags = "(?is)"

// Compile compiles a rule pattern the way the detector matches it.
func Compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(flags + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}

// ValidatePattern is a rules.PatternValidator that rejects patterns Compile rejects.
func ValidatePattern(pattern string) error {
	_, err := Compile(pattern)
	return err
}

type compiledRule struct {
	rule rules.Rule
	re   *regexp.Regexp
}

// Detector matches prompts against a fixed, ordered set of compiled rules.
type Detector struct {
	rules  []compiledRule
	logger *slog.Logger
}

// New compiles rs. Rules whose pattern fails to compile are skipped with a
// warning. The detector is disabled when no rule survives.
func New(rs []rules.Rule, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "detector.regex")

	d := &Detector{logger: logger}
	for _, r := range rs {
		re, err := Compile(r.Body)
		if err != nil {
			logger.Warn("skipping rule", "rule_id", r.ID, "source", r.Source, "error", err)
			continue
		}
		d.rules = append(d.rules, compiledRule{rule: r, re: re})
	}
	if len(d.rules) == 0 {
		logger.Warn("no regex rules loaded, detector disabled")
	}
	return d
}

// Load reads every rule under dir and builds a detector from them.
// A load failure yields a disabled detector, never an error.
func Load(dir string, logger *slog.Logger) (*Detector, *rules.Report) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := rules.DefaultLoaderConfig()
	cfg.ValidatePattern = ValidatePattern

	rs, report, err := rules.NewLoader(cfg, logger).LoadDir(dir)
	if err != nil {
		logger.Error("failed to load regex rules", "dir", dir, "error", err)
	}
	return New(rs, logger), report
}

// Name implements detector.Detector.
func (d *Detector) Name() string { return detector.NameRegex }

// Enabled implements detector.Detector.
func (d *Detector) Enabled() bool { return len(d.rules) > 0 }

// RuleCount returns the number of compiled rules.
func (d *Detector) RuleCount() int { return len(d.rules) }

// Run reports one triggered rule per matching pattern, in load order.
func (d *Detector) Run(ctx context.Context, prompt string, rc detector.RunContext) verdict.PipelineResult {
	var triggered []verdict.TriggeredRule
	for i, cr := range d.rules {
		// Large rule sets on long prompts can outlive the deadline.
		if i%64 == 0 && ctx.Err() != nil {
			return detector.Failed(d.logger, d.Name(), rc, ctx.Err())
		}
		if !cr.re.MatchString(prompt) {
			continue
		}
		triggered = append(triggered, verdict.TriggeredRule{
			ID:      cr.rule.ID,
			Name:    cr.rule.Name,
			Details: cr.rule.Details,
			Body:    cr.rule.Body,
			Action:  cr.rule.Action,
		})
	}

	res := verdict.NewResult(d.Name(), triggered)
	d.logger.DebugContext(ctx, "regex analysis done",
		"rules", len(d.rules),
		"triggered", len(triggered),
		"status", res.Status,
	)
	return res
}
