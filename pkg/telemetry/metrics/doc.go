// Package metrics provides Prometheus metrics for the detection pipeline.
//
// # Metrics
//
//	bastion_detector_runs_total{detector,status}       detector runs by outcome
//	bastion_detector_duration_seconds{detector}        detector run latency
//	bastion_detector_failures_total{detector,reason}   timeouts, panics, cancellations
//	bastion_flow_requests_total{flow,status}           flow runs by final status
//	bastion_flow_duration_seconds{flow}                end to end flow latency
//	bastion_notify_events_total{sink,result}           sink deliveries
//	bastion_notify_dropped_total                       events dropped on a full queue
//	bastion_rules_loaded{detector}                     rules currently loaded
//	bastion_http_requests_total{route,method,code}     API requests
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordDetectorRun("regex", "block", 3*time.Millisecond)
//	mux.Handle("/metrics", collector.Handler())
//
// All record methods are safe on a nil or disabled collector.
//
// # Cardinality
//
// Flow names arrive from API callers. The collector tracks at most 1,000
// distinct flow labels and reports the rest as "other".
package metrics
