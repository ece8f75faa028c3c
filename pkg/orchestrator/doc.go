// Package orchestrator runs a flow's detectors concurrently and merges
// their results into one verdict.
//
// Every detector of the requested flow runs in its own goroutine with its
// own deadline. The orchestrator waits for all of them: a BLOCK does not
// cancel the others. A detector that misses its deadline, returns after
// cancellation or panics is recorded as ALLOW. Non-allow results are kept in
// flow order and aggregated; when the final status is not ALLOW an event is
// handed to the notification publisher without waiting for delivery.
//
// The flow registry is held behind an atomic pointer so rule reloads can
// swap in a rebuilt registry while requests in flight keep their snapshot.
package orchestrator
