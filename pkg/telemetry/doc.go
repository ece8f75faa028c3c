// Package telemetry groups the observability packages of the gateway.
//
//   - logging: slog construction, context fields (request, task, flow) and
//     redaction of prompts and credentials
//   - metrics: Prometheus collector for detector runs, flows, notifications
//     and HTTP requests
//   - tracing: OpenTelemetry tracer with OTLP/gRPC export, flow and detector
//     spans, and HTTP trace propagation
//   - health: liveness and readiness checks
//
// Every component tolerates being disabled: a nil *metrics.Collector and a
// nil *tracing.Tracer are valid and record nothing.
package telemetry
