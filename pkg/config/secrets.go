package config

import (
	"context"
	"fmt"
	"sort"

	"aidr-hq/bastion/pkg/secrets"
)

// ResolveSecrets replaces ${env:name} and ${file:name} references in
// credential fields with their values. Every field is attempted and all
// failures are reported together.
func ResolveSecrets(cfg *Config) error {
	r := secrets.NewResolver(
		secrets.NewEnvProvider(cfg.Secrets.EnvPrefix),
		secrets.NewFileProvider(cfg.Secrets.Dir),
	)

	fields := []secrets.Field{
		{Path: "detectors.openai.api_key", Value: &cfg.Detectors.OpenAI.APIKey},
		{Path: "detectors.regex.git.auth.token", Value: &cfg.Detectors.Regex.Git.Auth.Token},
		{Path: "detectors.regex.git.auth.ssh_key_passphrase", Value: &cfg.Detectors.Regex.Git.Auth.SSHKeyPassphrase},
		{Path: "embeddings.api_key", Value: &cfg.Embeddings.APIKey},
		{Path: "opensearch.password", Value: &cfg.OpenSearch.Password},
		{Path: "notify.kafka.sasl_password", Value: &cfg.Notify.Kafka.SASLPassword},
	}

	// Map values are not addressable; resolve header values through copies.
	headers := make([]string, 0, len(cfg.Notify.Webhook.Headers))
	for k := range cfg.Notify.Webhook.Headers {
		headers = append(headers, k)
	}
	sort.Strings(headers)
	values := make([]string, len(headers))
	for i, k := range headers {
		values[i] = cfg.Notify.Webhook.Headers[k]
		fields = append(fields, secrets.Field{Path: "notify.webhook.headers." + k, Value: &values[i]})
	}

	err := r.ResolveFields(context.Background(), fields...)
	for i, k := range headers {
		cfg.Notify.Webhook.Headers[k] = values[i]
	}
	if err != nil {
		return fmt.Errorf("failed to resolve secrets:\n%w", err)
	}
	return nil
}
