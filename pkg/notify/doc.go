// Package notify forwards non-allow verdicts to external sinks.
//
// The orchestrator hands an Event to the Emitter, which queues it without
// blocking and returns. Worker goroutines deliver each queued event to every
// configured Sink. When the queue is full the event is dropped and counted;
// a slow or unavailable sink never delays a pipeline request.
//
// Sinks:
//
//   - KafkaSink publishes one JSON message per event, keyed by task ID.
//   - WebhookSink POSTs the JSON event to an HTTP endpoint.
//   - The verdict store (package store) records events in sqlite.
package notify
