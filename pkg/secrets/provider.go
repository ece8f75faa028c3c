// Package secrets resolves secret references embedded in configuration
// values.
//
// A reference has the form ${scheme:name}. Two schemes are supported:
//
//	${env:openai-api-key}   read from the environment (see EnvProvider)
//	${file:openai-api-key}  read from a file in the secrets directory (see FileProvider)
//
// Values without a reference are returned unchanged.
package secrets

import "context"

// Provider retrieves secrets from one backend.
type Provider interface {
	// GetSecret returns the secret value. A missing secret is an error.
	GetSecret(ctx context.Context, name string) (string, error)

	// Scheme is the reference scheme served by the provider ("env", "file").
	Scheme() string
}
