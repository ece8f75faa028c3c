package verdict

// Max returns the more severe of two statuses (BLOCK > NOTIFY > ALLOW).
//
// The same ordering combines triggered rules inside one detector (FromRules)
// and pipeline results across detectors (Aggregate).
func Max(a, b Status) Status {
	if b.severity() > a.severity() {
		return b
	}
	if a.severity() == 0 {
		return StatusAllow
	}
	return a
}

// Aggregate computes the overall status of a set of pipeline results.
// An empty set is ALLOW.
func Aggregate(results []PipelineResult) Status {
	status := StatusAllow
	for _, r := range results {
		status = Max(status, r.Status)
		if status == StatusBlock {
			break
		}
	}
	return status
}

// FromRules derives a detector status from its triggered rules:
// BLOCK if any rule blocks, else NOTIFY if any rule notifies, else ALLOW.
func FromRules(rules []TriggeredRule) Status {
	status := StatusAllow
	for _, r := range rules {
		status = Max(status, r.Action.Status())
		if status == StatusBlock {
			break
		}
	}
	return status
}

// Filter returns only the BLOCK and NOTIFY results, preserving order.
func Filter(results []PipelineResult) []PipelineResult {
	out := make([]PipelineResult, 0, len(results))
	for _, r := range results {
		if r.Status == StatusBlock || r.Status == StatusNotify {
			out = append(out, r)
		}
	}
	return out
}

// Combine filters results and aggregates them into a TaskResult.
func Combine(results []PipelineResult) TaskResult {
	kept := Filter(results)
	return TaskResult{
		Status:    Aggregate(kept),
		Pipelines: kept,
	}
}
