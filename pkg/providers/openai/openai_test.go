package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aidr-hq/bastion/pkg/providers"
)

func TestChatClientComplete(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"status\":\"allow\"}"}}]}`))
	}))
	defer server.Close()

	c, err := NewChatClient(ChatConfig{
		BaseURL:     server.URL + "/v1/",
		APIKey:      "sk-test",
		Model:       "gpt-4",
		Temperature: 0.1,
		MaxTokens:   1000,
		Timeout:     time.Second,
		JSONMode:    true,
	})
	if err != nil {
		t.Fatalf("NewChatClient() error = %v", err)
	}

	out, err := c.Complete(context.Background(), "sys", "user text")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"status":"allow"}` {
		t.Errorf("content = %q", out)
	}

	if got.Model != "gpt-4" || got.Temperature != 0.1 || got.MaxTokens != 1000 {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "user text" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v", got.ResponseFormat)
	}
}

func TestChatClientNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c, _ := NewChatClient(ChatConfig{BaseURL: server.URL, APIKey: "k", Model: "m", Timeout: time.Second})
	_, err := c.Complete(context.Background(), "s", "u")
	var pe *providers.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("expected ParseError, got %v", err)
	}
}

func TestNewChatClientValidation(t *testing.T) {
	if _, err := NewChatClient(ChatConfig{BaseURL: "http://x", Model: "m"}); err == nil {
		t.Error("expected error without api key")
	}
}

func TestEmbeddingsClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic" {
			t.Errorf("model = %q", req.Model)
		}
		// Out of order on purpose.
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1,0]},{"index":0,"embedding":[1,0,0]}]}`))
	}))
	defer server.Close()

	c, err := NewEmbeddingsClient(EmbeddingsConfig{BaseURL: server.URL, Model: "nomic", Dimension: 3, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewEmbeddingsClient() error = %v", err)
	}

	vectors, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Errorf("vectors not reordered by index: %v", vectors)
	}
}

func TestEmbeddingsClientDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,2]}]}`))
	}))
	defer server.Close()

	c, _ := NewEmbeddingsClient(EmbeddingsConfig{BaseURL: server.URL, Model: "m", Dimension: 768, Timeout: time.Second})
	_, err := c.Embed(context.Background(), "text")
	var pe *providers.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("expected ParseError, got %v", err)
	}
}
