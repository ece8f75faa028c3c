package detector

import (
	"context"
	"errors"
	"testing"

	"aidr-hq/bastion/pkg/verdict"
)

type stub struct {
	name    string
	enabled bool
}

func (s stub) Name() string  { return s.name }
func (s stub) Enabled() bool { return s.enabled }
func (s stub) Run(context.Context, string, RunContext) verdict.PipelineResult {
	return verdict.Allow(s.name)
}

func TestRegistryOrderAndEnabled(t *testing.T) {
	r, err := NewRegistry(
		stub{"regex", true},
		stub{"ml", false},
		stub{"openai", true},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	var all []string
	for _, d := range r.All() {
		all = append(all, d.Name())
	}
	if len(all) != 3 || all[0] != "regex" || all[1] != "ml" || all[2] != "openai" {
		t.Errorf("All() order = %v", all)
	}

	enabled := r.Enabled()
	if len(enabled) != 2 || enabled[0].Name() != "regex" || enabled[1].Name() != "openai" {
		t.Errorf("Enabled() = %v", enabled)
	}

	if _, ok := r.Get("ml"); !ok {
		t.Error("Get(ml) should find disabled detectors too")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should fail")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name string
		ds   []Detector
	}{
		{"duplicate", []Detector{stub{"a", true}, stub{"a", false}}},
		{"empty name", []Detector{stub{"", true}}},
		{"nil", []Detector{nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.ds...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFailedReturnsAllow(t *testing.T) {
	res := Failed(discardLogger(), "openai", RunContext{TaskID: "t"}, errors.New("boom"))
	if res.Status != verdict.StatusAllow || res.Name != "openai" || len(res.TriggeredRules) != 0 {
		t.Errorf("Failed() = %+v", res)
	}
}
