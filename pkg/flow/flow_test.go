package flow

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"aidr-hq/bastion/pkg/config"
	"aidr-hq/bastion/pkg/detector"
	"aidr-hq/bastion/pkg/verdict"
)

type stub struct {
	name    string
	enabled bool
}

func (s stub) Name() string  { return s.name }
func (s stub) Enabled() bool { return s.enabled }
func (s stub) Run(context.Context, string, detector.RunContext) verdict.PipelineResult {
	return verdict.Allow(s.name)
}

func newRegistry(t *testing.T) *detector.Registry {
	t.Helper()
	r, err := detector.NewRegistry(
		stub{"regex", true},
		stub{"code_analysis", true},
		stub{"ml", false},
		stub{"openai", true},
	)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func names(ds []detector.Detector) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name())
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestLookup(t *testing.T) {
	r := New(newRegistry(t), []config.FlowConfig{
		{Name: "code", Detectors: []string{"code_analysis", "regex"}},
		{Name: "mixed", Detectors: []string{"ml", "missing", "openai"}},
		{Name: "empty", Detectors: []string{"ml"}},
		{Name: "default", Detectors: []string{"regex"}},
	}, quiet())

	tests := []struct {
		flow string
		want []string
	}{
		{"default", []string{"regex", "code_analysis", "openai"}},
		{"code", []string{"code_analysis", "regex"}},
		{"mixed", []string{"openai"}},
		{"empty", []string{}},
		{"nope", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.flow, func(t *testing.T) {
			if got := names(r.Lookup(tt.flow)); !equal(got, tt.want) {
				t.Errorf("Lookup(%q) = %v, want %v", tt.flow, got, tt.want)
			}
		})
	}

	if !r.Has("empty") {
		t.Error("a flow whose detectors were all dropped should still be registered")
	}
	if r.Has("nope") {
		t.Error("unknown flow reported as registered")
	}
	if r.EnabledCount() != 3 {
		t.Errorf("EnabledCount() = %d, want 3", r.EnabledCount())
	}
}

func TestList(t *testing.T) {
	r := New(newRegistry(t), []config.FlowConfig{
		{Name: "zeta", Detectors: []string{"openai"}},
		{Name: "alpha", Detectors: []string{"regex"}},
	}, quiet())

	list := r.List()
	var got []string
	for _, f := range list {
		got = append(got, f.FlowName)
	}
	if !equal(got, []string{"default", "alpha", "zeta"}) {
		t.Fatalf("List() order = %v", got)
	}
	if p := list[2].Pipelines; len(p) != 1 || p[0].Name != "openai" || !p[0].Enabled {
		t.Errorf("zeta pipelines = %+v", p)
	}
}

func TestNoDetectors(t *testing.T) {
	empty, err := detector.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	r := New(empty, nil, quiet())
	if len(r.Lookup(DefaultName)) != 0 {
		t.Error("default flow should be empty")
	}
	if list := r.List(); len(list) != 1 || list[0].Pipelines == nil {
		t.Errorf("List() = %+v", list)
	}
}
