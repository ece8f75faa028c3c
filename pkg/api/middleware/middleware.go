// Package middleware provides the HTTP middleware chain of the API server:
// panic recovery, request IDs, access logging, CORS and request timeouts.
package middleware

import "net/http"

// Chain applies mws so that the first one is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
