// Package store records non-allow verdicts in a local sqlite database.
//
// Store implements notify.Sink, so it receives the same events as the
// Kafka and webhook sinks. Records older than the retention period are
// deleted on a cron schedule by Retention.
//
// The database uses the pure Go modernc.org/sqlite driver in WAL mode.
package store
