// Package providers holds the HTTP client base shared by the model
// providers Bastion calls out to (chat completions and embeddings).
//
// HTTPProvider pools connections, retries transient failures (network
// errors and 5xx) with exponential backoff and maps error responses to
// typed errors:
//
//   - 401/403 -> *AuthError (not retried)
//   - 429 -> *RateLimitError (not retried, carries Retry-After)
//   - 400 -> *ProviderError (not retried)
//   - 5xx -> *ProviderError after retries are exhausted
//   - context deadline -> *TimeoutError
//   - undecodable body -> *ParseError
//
// Concrete clients live in subpackages (see providers/openai).
package providers
