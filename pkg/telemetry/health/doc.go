// Package health implements the liveness and readiness probes.
//
// Liveness (/health) answers as long as the process serves HTTP. Readiness
// (/ready) runs every registered check concurrently, each bounded by the
// checker timeout, and answers 503 when any check fails. Bastion registers
// two checks: the similarity index must be reachable when the similarity
// detector is configured, and at least one detector must be enabled.
package health
