package output

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrzor/alpc-tracer/internal/alpc"
	"github.com/mrzor/alpc-tracer/internal/attributes"
	"github.com/mrzor/alpc-tracer/internal/correlator"
	"github.com/mrzor/alpc-tracer/internal/timesync"
)

const (
	sessionSpanName = "alpc.session"
	messageSpanName = "alpc.message"
)

// SpanExporter formats correlated messages as OpenTelemetry spans.
// Calls are serialized by the correlator, so it keeps no lock.
type SpanExporter struct {
	tracer    trace.Tracer
	evaluator *attributes.Evaluator
	clock     *timesync.Converter

	ctx     context.Context
	session trace.Span
	last    float64 // latest message timestamp, session milliseconds
}

// NewSpanExporter starts the session span for targetPID. extra is
// attached to it, typically trace ID warnings.
func NewSpanExporter(tracer trace.Tracer, targetPID int, evaluator *attributes.Evaluator, clock *timesync.Converter, extra ...attribute.KeyValue) *SpanExporter {
	attrs := append([]attribute.KeyValue{attribute.Int("alpc.target_pid", targetPID)}, extra...)
	ctx, session := tracer.Start(context.Background(), sessionSpanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(clock.Start()),
		trace.WithAttributes(attrs...),
	)

	return &SpanExporter{
		tracer:    tracer,
		evaluator: evaluator,
		clock:     clock,
		ctx:       ctx,
		session:   session,
	}
}

var _ correlator.Observer = (*SpanExporter)(nil)

// ObserveInteraction records in as a zero-length span at its timestamp.
// Outbound messages are producer spans, inbound ones consumer spans.
func (x *SpanExporter) ObserveInteraction(in correlator.Interaction) error {
	kind := trace.SpanKindConsumer
	if in.Direction == correlator.Outbound {
		kind = trace.SpanKindProducer
	}

	if in.Timestamp > x.last {
		x.last = in.Timestamp
	}

	at := x.clock.Absolute(in.Timestamp)
	_, span := x.tracer.Start(x.ctx, messageSpanName,
		trace.WithSpanKind(kind),
		trace.WithTimestamp(at),
		trace.WithAttributes(messageAttributes(in)...),
	)
	if x.evaluator != nil {
		span.SetAttributes(x.evaluator.EvaluateCustomAttributes(in)...)
	}
	span.End(trace.WithTimestamp(at))

	return nil
}

// Close ends the session span at the latest message seen.
func (x *SpanExporter) Close() {
	x.session.End(trace.WithTimestamp(x.clock.Absolute(x.last)))
}

func messageAttributes(in correlator.Interaction) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int64("alpc.message_id", int64(in.MessageID)),
		attribute.String("alpc.direction", string(in.Direction)),
	}
	attrs = append(attrs, identityAttributes("alpc.sender", in.Sender)...)
	return append(attrs, identityAttributes("alpc.receiver", in.Receiver)...)
}

func identityAttributes(prefix string, id alpc.Identity) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(prefix+".pid", id.PID),
		attribute.String(prefix+".name", id.Name),
		attribute.Int(prefix+".tid", id.TID),
	}
}
