// Package gateway assembles a running Bastion instance from configuration.
//
// New builds telemetry, providers, detectors, flows, notification sinks and
// the orchestrator in dependency order. Detectors whose dependencies are
// missing are constructed disabled rather than failing startup. Start runs
// the background work: the regex rule watcher, the git rule poller and the
// verdict retention scheduler. Every rule reload builds a fresh detector
// and flow registry and swaps it into the orchestrator; in-flight requests
// keep the registry they started with.
package gateway
