package otel

import (
	"context"
	"crypto/rand"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDGenerator puts every root span in one trace. Span IDs are random.
type TraceIDGenerator struct {
	TraceID trace.TraceID
}

var _ sdktrace.IDGenerator = TraceIDGenerator{}

// NewIDs returns the fixed trace ID and a fresh span ID.
func (g TraceIDGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	return g.TraceID, g.NewSpanID(ctx, g.TraceID)
}

// NewSpanID returns a random non-zero span ID.
func (TraceIDGenerator) NewSpanID(_ context.Context, _ trace.TraceID) trace.SpanID {
	var id trace.SpanID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id
}
