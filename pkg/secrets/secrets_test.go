package secrets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnvProvider(t *testing.T) {
	t.Setenv("BASTION_SECRET_OPENAI_API_KEY", "sk-test")
	p := NewEnvProvider("BASTION_SECRET_")

	got, err := p.GetSecret(context.Background(), "openai-api-key")
	if err != nil {
		t.Fatal(err)
	}
	if got != "sk-test" {
		t.Errorf("got %q", got)
	}

	if _, err := p.GetSecret(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing secret")
	}
}

func writeSecret(t *testing.T, dir, name, value string, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value), mode); err != nil {
		t.Fatal(err)
	}
	// WriteFile honours the umask; force the mode under test.
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "kafka-password", "hunter2\n", 0o600)
	writeSecret(t, dir, "readonly", "ro", 0o400)
	writeSecret(t, dir, "loose", "x", 0o644)
	p := NewFileProvider(dir)
	ctx := context.Background()

	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr string
	}{
		{"trimmed", "kafka-password", "hunter2", ""},
		{"read only", "readonly", "ro", ""},
		{"insecure mode", "loose", "", "insecure permissions"},
		{"missing", "nope", "", "not found"},
		{"traversal", "../etc/passwd", "", "outside"},
		{"directory itself", ".", "", "outside"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.GetSecret(ctx, tt.secret)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver(t *testing.T) {
	t.Setenv("TEST_SECRET_TOKEN", "abc")
	dir := t.TempDir()
	writeSecret(t, dir, "password", "pw", 0o600)
	r := NewResolver(NewEnvProvider("TEST_SECRET_"), NewFileProvider(dir))
	ctx := context.Background()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "plain", false},
		{"", "", false},
		{"${env:token}", "abc", false},
		{"Bearer ${env:token}", "Bearer abc", false},
		{"${file:password}:${env:token}", "pw:abc", false},
		{"${vault:token}", "${vault:token}", true},
		{"${env:missing}", "${env:missing}", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := r.ResolveString(ctx, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveFields(t *testing.T) {
	t.Setenv("TEST_SECRET_KEY", "k")
	r := NewResolver(NewEnvProvider("TEST_SECRET_"))

	a, b, c := "${env:key}", "${env:absent}", "literal"
	err := r.ResolveFields(context.Background(),
		Field{Path: "a", Value: &a},
		Field{Path: "b", Value: &b},
		Field{Path: "c", Value: &c},
		Field{Path: "nil"},
	)
	if err == nil || !strings.Contains(err.Error(), "b:") {
		t.Fatalf("err = %v, want failure for b", err)
	}
	if a != "k" || b != "${env:absent}" || c != "literal" {
		t.Errorf("a=%q b=%q c=%q", a, b, c)
	}
}
