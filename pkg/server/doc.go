// Package server provides the Bastion HTTP API server.
//
// The server mounts the API handlers, the health probes and the Prometheus
// endpoint on one mux and wraps it in the middleware chain. Start blocks
// until the context is cancelled or SIGINT/SIGTERM arrives and then shuts
// down gracefully.
//
// # Routes
//
//   - POST /api/v1/run_pipeline - run a flow over a prompt
//   - GET /api/v1/flows - list flows and their detectors
//   - GET /api/v1/verdicts - list recorded non-ALLOW verdicts
//   - GET /health - liveness probe
//   - GET /ready - readiness probe
//   - GET /metrics - Prometheus metrics (path is configurable)
package server
