package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"aidr-hq/bastion/pkg/providers"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatConfig configures a ChatClient.
type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int

	// JSONMode requests a JSON object reply (response_format json_object).
	JSONMode bool
}

// ChatClient calls the chat completions endpoint.
type ChatClient struct {
	*providers.HTTPProvider
	cfg ChatConfig
}

// NewChatClient creates a chat client.
func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &ChatClient{
		HTTPProvider: providers.NewHTTPProvider(providers.ProviderConfig{
			Name:       "openai",
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
		cfg: cfg,
	}, nil
}

// Complete sends one system and one user message and returns the content
// of the first choice.
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if c.cfg.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	if err := c.DoJSONRequest(ctx, http.MethodPost, endpoint(c.cfg.BaseURL, "chat/completions"), req, &resp, nil); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &providers.ParseError{Provider: c.Name(), Cause: fmt.Errorf("response has no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + path
}
