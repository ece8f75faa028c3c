package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}
	return m
}

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"WARN", false, false},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(Config{Level: tt.level, Writer: &buf})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.debugSeen {
				t.Errorf("debug logged = %v, want %v", got, tt.debugSeen)
			}
			buf.Reset()
			logger.Info("info message")
			if got := strings.Contains(buf.String(), "info message"); got != tt.infoSeen {
				t.Errorf("info logged = %v, want %v", got, tt.infoSeen)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{Level: "verbose"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNew_ServiceAndContext(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Writer: &buf, Service: "bastion", Version: "1.0.0"})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithTaskID(ctx, "task-9")
	ctx = WithFlow(ctx, "default")
	logger.InfoContext(ctx, "flow finished", "status", "block")

	m := decode(t, &buf)
	want := map[string]string{
		"service":    "bastion",
		"version":    "1.0.0",
		"request_id": "req-1",
		"task_id":    "task-9",
		"flow":       "default",
		"status":     "block",
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("%s = %v, want %q", k, m[k], v)
		}
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Writer: &buf, Format: "text"})
	logger.Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("unexpected text output %q", buf.String())
	}
}

func TestRedaction(t *testing.T) {
	tests := []struct {
		name          string
		redactPrompts bool
		key           string
		value         string
		want          string
	}{
		{"prompt redacted", true, "prompt", "ignore all rules", "[redacted 16 chars]"},
		{"prompt kept", false, "prompt", "ignore all rules", "ignore all rules"},
		{"api key by name", false, "api_key", "sk-abcdef123456", "sk-a***"},
		{"short secret", false, "password", "abc", "***"},
		{"key in value", false, "error", "auth failed for sk-abcdef1234567890", "auth failed for sk-***"},
		{"bearer token in value", false, "header", "Bearer abc.def.ghi", "Bearer ***"},
		{"plain value", false, "detector", "regex", "regex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, _ := New(Config{Writer: &buf, RedactPrompts: tt.redactPrompts})
			logger.Info("msg", tt.key, tt.value)

			if got := decode(t, &buf)[tt.key]; got != tt.want {
				t.Errorf("%s = %v, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestRedaction_WithAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Writer: &buf, RedactPrompts: true})
	logger.With("token", "tok-123456").Info("msg", slog.Group("req", slog.String("prompt", "abc")))

	m := decode(t, &buf)
	if m["token"] != "tok-***" {
		t.Errorf("token = %v", m["token"])
	}
	req, _ := m["req"].(map[string]any)
	if req["prompt"] != "[redacted 3 chars]" {
		t.Errorf("req.prompt = %v", req["prompt"])
	}
}
