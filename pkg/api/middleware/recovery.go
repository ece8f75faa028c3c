package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"aidr-hq/bastion/pkg/api"
)

// Recovery converts handler panics into a 500 JSON error and logs the stack.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic in handler",
						"error", err,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					api.WriteError(w, api.NewServerError("An internal error occurred. Please try again later."))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
