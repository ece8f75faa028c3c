package verdict

import (
	"encoding/json"
	"strings"
	"testing"
)

func result(name string, s Status) PipelineResult {
	return PipelineResult{Status: s, Name: name}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		results []PipelineResult
		want    Status
	}{
		{"empty", nil, StatusAllow},
		{"all allow", []PipelineResult{result("a", StatusAllow), result("b", StatusAllow)}, StatusAllow},
		{"one notify", []PipelineResult{result("a", StatusAllow), result("b", StatusNotify)}, StatusNotify},
		{"one block", []PipelineResult{result("a", StatusBlock)}, StatusBlock},
		{"block beats notify", []PipelineResult{result("a", StatusNotify), result("b", StatusBlock), result("c", StatusNotify)}, StatusBlock},
		{"block first", []PipelineResult{result("a", StatusBlock), result("b", StatusAllow)}, StatusBlock},
		{"unknown ranks as allow", []PipelineResult{result("a", Status("weird"))}, StatusAllow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.results); got != tt.want {
				t.Errorf("Aggregate() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Every combination of up to three statuses follows the precedence law.
func TestAggregateExhaustive(t *testing.T) {
	all := []Status{StatusAllow, StatusNotify, StatusBlock}
	var sets [][]Status
	for _, a := range all {
		sets = append(sets, []Status{a})
		for _, b := range all {
			sets = append(sets, []Status{a, b})
			for _, c := range all {
				sets = append(sets, []Status{a, b, c})
			}
		}
	}

	for _, set := range sets {
		var results []PipelineResult
		hasBlock, hasNotify := false, false
		for i, s := range set {
			results = append(results, result(string(rune('a'+i)), s))
			hasBlock = hasBlock || s == StatusBlock
			hasNotify = hasNotify || s == StatusNotify
		}

		want := StatusAllow
		switch {
		case hasBlock:
			want = StatusBlock
		case hasNotify:
			want = StatusNotify
		}

		if got := Aggregate(results); got != want {
			t.Errorf("Aggregate(%v) = %q, want %q", set, got, want)
		}
	}
}

func TestFromRules(t *testing.T) {
	tests := []struct {
		name  string
		rules []TriggeredRule
		want  Status
	}{
		{"no rules", nil, StatusAllow},
		{"notify only", []TriggeredRule{{Action: ActionNotify}}, StatusNotify},
		{"mixed", []TriggeredRule{{Action: ActionNotify}, {Action: ActionBlock}}, StatusBlock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromRules(tt.rules); got != tt.want {
				t.Errorf("FromRules() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCombineDropsAllow(t *testing.T) {
	task := Combine([]PipelineResult{
		result("regex", StatusAllow),
		result("similarity", StatusNotify),
		result("openai", StatusBlock),
	})

	if task.Status != StatusBlock {
		t.Errorf("status = %q, want block", task.Status)
	}
	if len(task.Pipelines) != 2 {
		t.Fatalf("pipelines = %d, want 2", len(task.Pipelines))
	}
	if task.Pipelines[0].Name != "similarity" || task.Pipelines[1].Name != "openai" {
		t.Errorf("unexpected order: %+v", task.Pipelines)
	}
	for _, p := range task.Pipelines {
		if p.Status == StatusAllow {
			t.Errorf("allow entry kept: %+v", p)
		}
	}
}

func TestParseAction(t *testing.T) {
	tests := map[string]Action{
		"block":  ActionBlock,
		"BLOCK ": ActionBlock,
		"notify": ActionNotify,
		"":       ActionNotify,
		"drop":   ActionNotify,
	}
	for in, want := range tests {
		if got := ParseAction(in); got != want {
			t.Errorf("ParseAction(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("Block"); err != nil || s != StatusBlock {
		t.Errorf("ParseStatus(Block) = %q, %v", s, err)
	}
	if _, err := ParseStatus("maybe"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestEmptyListsRenderAsArrays(t *testing.T) {
	data, err := json.Marshal(TaskResult{Status: StatusAllow})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"pipelines":[]`) {
		t.Errorf("got %s", data)
	}

	data, err = json.Marshal(PipelineResult{Status: StatusAllow, Name: "regex"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"triggered_rules":[]`) {
		t.Errorf("got %s", data)
	}
}
