package codeanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Finding is one issue reported by a static analyzer.
type Finding struct {
	CheckID  string
	Message  string
	Severity string
	CWEID    string
}

// Scanner runs a static analyzer over a file.
type Scanner interface {
	Scan(ctx context.Context, file string, lang Language) ([]Finding, error)
}

// Semgrep is a Scanner backed by the semgrep CLI.
type Semgrep struct {
	// Path is the semgrep executable.
	Path string
}

// NewSemgrep resolves the semgrep executable. It fails when the binary
// cannot be found.
func NewSemgrep(path string) (*Semgrep, error) {
	if path == "" {
		path = "semgrep"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("semgrep not found: %w", err)
	}
	return &Semgrep{Path: resolved}, nil
}

// Args returns the scanner arguments for file.
func (s *Semgrep) Args(file string, lang Language) []string {
	args := []string{"scan", "--metrics=off"}
	if lang.Ruleset != "" {
		args = append(args, "--config="+lang.Ruleset)
	}
	if lang.LocalRules != "" {
		args = append(args, "--config="+lang.LocalRules)
	}
	return append(args, "--json", file)
}

// Scan implements Scanner.
func (s *Semgrep) Scan(ctx context.Context, file string, lang Language) ([]Finding, error) {
	cmd := exec.CommandContext(ctx, s.Path, s.Args(file, lang)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("semgrep exited with code %d: %s", exitErr.ExitCode(), tail(stderr.String(), 512))
		}
		return nil, fmt.Errorf("failed to run semgrep: %w", err)
	}
	return ParseReport(stdout.Bytes())
}

type semgrepReport struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Extra   struct {
			Message  string                     `json:"message"`
			Severity string                     `json:"severity"`
			Metadata map[string]json.RawMessage `json:"metadata"`
		} `json:"extra"`
	} `json:"results"`
}

// ParseReport converts semgrep JSON output into findings. Severity and CWE
// are lower-cased; a CWE list contributes its first entry.
func ParseReport(data []byte) ([]Finding, error) {
	var report semgrepReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse semgrep output: %w", err)
	}

	findings := make([]Finding, 0, len(report.Results))
	for _, r := range report.Results {
		findings = append(findings, Finding{
			CheckID:  r.CheckID,
			Message:  r.Extra.Message,
			Severity: strings.ToLower(r.Extra.Severity),
			CWEID:    strings.ToLower(cweID(r.Extra.Metadata)),
		})
	}
	return findings, nil
}

func cweID(metadata map[string]json.RawMessage) string {
	for _, key := range []string{"cwe_id", "cwe"} {
		raw, ok := metadata[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			return list[0]
		}
	}
	return ""
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
