package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"aidr-hq/bastion/pkg/providers"
)

// WebhookOptions configures a WebhookSink.
type WebhookOptions struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration

	// MaxRetries after the first attempt. Default: 2
	MaxRetries int

	// Backoff before the first retry. Default: 500ms
	Backoff time.Duration
}

// WebhookSink POSTs events as JSON.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *providers.HTTPProvider
}

// NewWebhook creates a webhook sink.
func NewWebhook(opts WebhookOptions) (*WebhookSink, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 2
	}
	return &WebhookSink{
		url:     opts.URL,
		headers: opts.Headers,
		client: providers.NewHTTPProvider(providers.ProviderConfig{
			Name:         "webhook",
			Timeout:      opts.Timeout,
			MaxRetries:   opts.MaxRetries,
			RetryBackoff: opts.Backoff,
		}),
	}, nil
}

// Name returns "webhook".
func (s *WebhookSink) Name() string { return "webhook" }

// Deliver posts ev. Server errors are retried; client errors are not.
func (s *WebhookSink) Deliver(ctx context.Context, ev *Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	resp, err := s.client.DoRequest(ctx, http.MethodPost, s.url, body, s.headers)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Close releases pooled connections.
func (s *WebhookSink) Close(context.Context) error {
	return s.client.Close()
}
