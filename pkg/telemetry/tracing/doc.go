// Package tracing provides OpenTelemetry tracing for pipeline runs.
//
// One span is opened per flow run ("bastion.flow") and one child span per
// detector run ("bastion.detector"). Spans carry flow.name, detector.name,
// detector.status and task.id attributes and are exported over OTLP gRPC.
//
// When tracing is disabled a noop tracer is used, so callers never need to
// check whether tracing is on:
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, tracing.SpanFlow)
//	defer span.End()
//
// Incoming W3C trace context is honoured by HTTPMiddleware.
package tracing
