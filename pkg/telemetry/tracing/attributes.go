package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanFlow     = "bastion.flow"
	SpanDetector = "bastion.detector"
)

// Attribute keys.
const (
	AttrFlowName       = attribute.Key("flow.name")
	AttrFlowStatus     = attribute.Key("flow.status")
	AttrFlowDetectors  = attribute.Key("flow.detectors")
	AttrDetectorName   = attribute.Key("detector.name")
	AttrDetectorStatus = attribute.Key("detector.status")
	AttrDetectorRules  = attribute.Key("detector.triggered_rules")
	AttrFailureReason  = attribute.Key("detector.failure_reason")
	AttrTaskID         = attribute.Key("task.id")
)

// FlowStart returns the start options of a flow span.
func FlowStart(flow, taskID string, detectors int) trace.SpanStartOption {
	return trace.WithAttributes(
		AttrFlowName.String(flow),
		AttrTaskID.String(taskID),
		AttrFlowDetectors.Int(detectors),
	)
}

// DetectorStart returns the start options of a detector span.
func DetectorStart(flow, detector string) trace.SpanStartOption {
	return trace.WithAttributes(
		AttrFlowName.String(flow),
		AttrDetectorName.String(detector),
	)
}

// SetDetectorResult records a detector outcome on its span.
func SetDetectorResult(span trace.Span, status string, rules int) {
	span.SetAttributes(
		AttrDetectorStatus.String(status),
		AttrDetectorRules.Int(rules),
	)
}

// SetDetectorFailure records why a detector run was replaced by ALLOW.
func SetDetectorFailure(span trace.Span, reason string) {
	span.SetAttributes(AttrFailureReason.String(reason))
	span.AddEvent("detector.failed", trace.WithAttributes(AttrFailureReason.String(reason)))
}

// SetFlowStatus records the aggregated status on a flow span.
func SetFlowStatus(span trace.Span, status string) {
	span.SetAttributes(AttrFlowStatus.String(status))
}
