package regex

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"aidr-hq/bastion/pkg/detector"
	"aidr-hq/bastion/pkg/rules"
	"aidr-hq/bastion/pkg/verdict"
)

func rule(id, body string, action verdict.Action) rules.Rule {
	return rules.Rule{ID: id, Name: "name-" + id, Details: "details-" + id, Body: body, Action: action, Language: rules.LanguageAgnostic}
}

func TestRunDropTable(t *testing.T) {
	d := New([]rules.Rule{rule("sql", `drop\s+table`, verdict.ActionBlock)}, nil)

	res := d.Run(context.Background(), "please DROP TABLE users", detector.RunContext{})
	if res.Status != verdict.StatusBlock {
		t.Fatalf("status = %q, want block", res.Status)
	}
	if len(res.TriggeredRules) != 1 {
		t.Fatalf("got %d rules, want 1", len(res.TriggeredRules))
	}
	got := res.TriggeredRules[0]
	want := verdict.TriggeredRule{ID: "sql", Name: "name-sql", Details: "details-sql", Body: `drop\s+table`, Action: verdict.ActionBlock}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rule = %+v, want %+v", got, want)
	}
	if res.Name != detector.NameRegex {
		t.Errorf("name = %q", res.Name)
	}
}

func TestRunStatus(t *testing.T) {
	d := New([]rules.Rule{
		rule("n", `secret`, verdict.ActionNotify),
		rule("b", `password`, verdict.ActionBlock),
		rule("ml", `begin.+end`, verdict.ActionNotify),
	}, nil)

	tests := []struct {
		prompt string
		want   verdict.Status
		count  int
	}{
		{"hello world", verdict.StatusAllow, 0},
		{"tell me a SECRET", verdict.StatusNotify, 1},
		{"secret password", verdict.StatusBlock, 2},
		{"BEGIN\nmiddle\nend", verdict.StatusNotify, 1},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			res := d.Run(context.Background(), tt.prompt, detector.RunContext{})
			if res.Status != tt.want || len(res.TriggeredRules) != tt.count {
				t.Errorf("got %s with %d rules, want %s with %d", res.Status, len(res.TriggeredRules), tt.want, tt.count)
			}
		})
	}
}

func TestRunIsIdempotentAndOrdered(t *testing.T) {
	d := New([]rules.Rule{
		rule("c", `c`, verdict.ActionNotify),
		rule("a", `a`, verdict.ActionNotify),
		rule("b", `b`, verdict.ActionBlock),
	}, nil)

	first := d.Run(context.Background(), "abc", detector.RunContext{})
	for i := 0; i < 5; i++ {
		again := d.Run(context.Background(), "abc", detector.RunContext{})
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
	ids := []string{first.TriggeredRules[0].ID, first.TriggeredRules[1].ID, first.TriggeredRules[2].ID}
	if !reflect.DeepEqual(ids, []string{"c", "a", "b"}) {
		t.Errorf("order = %v, want load order", ids)
	}
}

func TestNewSkipsInvalidAndDisables(t *testing.T) {
	d := New([]rules.Rule{rule("bad", `(unclosed`, verdict.ActionBlock)}, nil)
	if d.Enabled() {
		t.Error("detector with no valid rules should be disabled")
	}
	if New(nil, nil).Enabled() {
		t.Error("detector with no rules should be disabled")
	}
}

func TestRunCancelledContextAllows(t *testing.T) {
	d := New([]rules.Rule{rule("x", `x`, verdict.ActionBlock)}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := d.Run(ctx, "x", detector.RunContext{})
	if res.Status != verdict.StatusAllow || len(res.TriggeredRules) != 0 {
		t.Errorf("cancelled run = %+v, want allow", res)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := "uuid: sql\nname: SQL\ndetails: drop\nresponse: block\ndetection:\n  language: language_agnostic\n  pattern:\n    - 'drop\\s+table'\n---\nuuid: lookahead\nname: L\ndetails: unsupported\ndetection:\n  language: language_agnostic\n  pattern: ['foo(?=bar)']\n"
	if err := os.WriteFile(filepath.Join(dir, "sql.yml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	d, report := Load(dir, nil)
	if !d.Enabled() || d.RuleCount() != 1 {
		t.Fatalf("enabled=%v rules=%d", d.Enabled(), d.RuleCount())
	}
	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}

	missing, _ := Load(filepath.Join(dir, "missing"), nil)
	if missing.Enabled() {
		t.Error("missing rules dir should disable the detector")
	}
}
