// Package logging builds the process slog.Logger.
//
// The returned logger writes JSON or text at the configured level, carries
// service and version attributes, adds request and task identifiers found
// in the context, and redacts secrets from attribute values. With
// RedactPrompts set, attributes named "prompt" are replaced by their length.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:         "info",
//	    Format:        "json",
//	    RedactPrompts: true,
//	    Service:       "bastion",
//	    Version:       "1.2.0",
//	})
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "request received", "prompt", prompt)
//	// {"level":"INFO","msg":"request received","request_id":"req-123","prompt":"[redacted 42 chars]"}
package logging
