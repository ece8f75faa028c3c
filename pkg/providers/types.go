package providers

import "time"

// ProviderConfig configures an HTTPProvider.
type ProviderConfig struct {
	// Name identifies the provider in errors and logs (e.g., "openai", "embeddings")
	Name string

	// BaseURL is the API endpoint base URL
	BaseURL string

	// APIKey is sent as a bearer token when set
	APIKey string

	// Timeout is the per-request timeout
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts after the first one
	MaxRetries int

	// RetryBackoff is the first backoff delay; it doubles on every retry (default: 500ms)
	RetryBackoff time.Duration

	// MaxIdleConns is the maximum number of idle connections in the pool (default: 100)
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host (default: 10)
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool (default: 90s)
	IdleConnTimeout time.Duration
}

// ProviderHealth tracks request outcomes.
type ProviderHealth struct {
	// IsHealthy is false after three consecutive failed requests
	IsHealthy bool

	ConsecutiveFailures   int
	LastError             error
	LastCheck             time.Time
	LastSuccessfulRequest time.Time
	TotalRequests         int64
	FailedRequests        int64
}
