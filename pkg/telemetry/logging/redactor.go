package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// Redactor removes secrets from log attribute values.
type Redactor struct {
	patterns      []redactPattern
	redactPrompts bool
}

// NewRedactor creates a Redactor. With redactPrompts, attributes named
// "prompt" are replaced by a length marker.
func NewRedactor(redactPrompts bool) *Redactor {
	return &Redactor{
		redactPrompts: redactPrompts,
		patterns: []redactPattern{
			// API keys (OpenAI style and generic key assignments)
			{regexp.MustCompile(`sk-[a-zA-Z0-9_-]{8,}`), "sk-***"},
			{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ***"},
			{regexp.MustCompile(`(?i)(password|passwd|pwd)[:=]\s*[^\s]+`), "$1: ***"},
		},
	}
}

// RedactString redacts secrets from a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// Attr returns a with its value redacted.
func (r *Redactor) Attr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = r.Attr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	key := strings.ToLower(a.Key)
	if r.redactPrompts && key == "prompt" {
		return slog.String(a.Key, fmt.Sprintf("[redacted %d chars]", len(a.Value.String())))
	}
	if isSensitiveKey(key) {
		return slog.String(a.Key, RedactSecret(a.Value.String()))
	}
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	}
	return a
}

// isSensitiveKey checks if a lower-cased key name indicates secret data.
func isSensitiveKey(key string) bool {
	for _, sensitive := range []string{"password", "secret", "token", "api_key", "apikey", "authorization"} {
		if strings.Contains(key, sensitive) {
			return true
		}
	}
	return false
}

// RedactSecret keeps a four character prefix of a secret.
func RedactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "***"
	}
	return secret[:4] + "***"
}
