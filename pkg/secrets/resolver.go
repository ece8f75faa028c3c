package secrets

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var refPattern = regexp.MustCompile(`\$\{([a-z]+):([^}]+)\}`)

// Resolver replaces secret references with values from its providers.
type Resolver struct {
	providers map[string]Provider
}

// NewResolver creates a resolver serving the schemes of the given providers.
// A later provider with the same scheme replaces an earlier one.
func NewResolver(providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Scheme()] = p
	}
	return r
}

// HasReference reports whether s contains a secret reference.
func HasReference(s string) bool {
	return refPattern.MatchString(s)
}

// ResolveString replaces every reference in s. On failure the original
// string is returned with an error naming each unresolved reference.
func (r *Resolver) ResolveString(ctx context.Context, s string) (string, error) {
	if !HasReference(s) {
		return s, nil
	}

	var failures []string
	out := refPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := refPattern.FindStringSubmatch(match)
		scheme, name := m[1], strings.TrimSpace(m[2])

		p, ok := r.providers[scheme]
		if !ok {
			failures = append(failures, fmt.Sprintf("unknown secret scheme %q", scheme))
			return match
		}
		value, err := p.GetSecret(ctx, name)
		if err != nil {
			failures = append(failures, err.Error())
			return match
		}
		return value
	})

	if len(failures) > 0 {
		return s, fmt.Errorf("failed to resolve secret references: %s", strings.Join(failures, "; "))
	}
	return out, nil
}

// Field names one configuration value to resolve in place.
type Field struct {
	Path  string
	Value *string
}

// ResolveFields resolves every field in place. All fields are attempted;
// the returned error lists the paths that failed.
func (r *Resolver) ResolveFields(ctx context.Context, fields ...Field) error {
	var failures []string
	for _, f := range fields {
		if f.Value == nil {
			continue
		}
		v, err := r.ResolveString(ctx, *f.Value)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", f.Path, err))
			continue
		}
		*f.Value = v
	}
	if len(failures) > 0 {
		return fmt.Errorf("%s", strings.Join(failures, "\n"))
	}
	return nil
}
