package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"aidr-hq/bastion/pkg/providers"
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbeddingsConfig configures an EmbeddingsClient.
type EmbeddingsConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimension  int
	Timeout    time.Duration
	MaxRetries int
}

// EmbeddingsClient calls an OpenAI compatible /embeddings endpoint.
type EmbeddingsClient struct {
	*providers.HTTPProvider
	cfg EmbeddingsConfig
}

// NewEmbeddingsClient creates an embeddings client.
func NewEmbeddingsClient(cfg EmbeddingsConfig) (*EmbeddingsClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &EmbeddingsClient{
		HTTPProvider: providers.NewHTTPProvider(providers.ProviderConfig{
			Name:       "embeddings",
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
		cfg: cfg,
	}, nil
}

// Dimension returns the configured vector length (0 when unchecked).
func (c *EmbeddingsClient) Dimension() int {
	return c.cfg.Dimension
}

// Embed returns the embedding of text.
func (c *EmbeddingsClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds several texts in one request, preserving input order.
func (c *EmbeddingsClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	req := embeddingRequest{Model: c.cfg.Model, Input: texts}
	if err := c.DoJSONRequest(ctx, http.MethodPost, endpoint(c.cfg.BaseURL, "embeddings"), req, &resp, nil); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, &providers.ParseError{
			Provider: c.Name(),
			Cause:    fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)),
		}
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, &providers.ParseError{Provider: c.Name(), Cause: fmt.Errorf("invalid embedding index %d", d.Index)}
		}
		if c.cfg.Dimension > 0 && len(d.Embedding) != c.cfg.Dimension {
			return nil, &providers.ParseError{
				Provider: c.Name(),
				Cause:    fmt.Errorf("embedding has %d dimensions, want %d", len(d.Embedding), c.cfg.Dimension),
			}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
