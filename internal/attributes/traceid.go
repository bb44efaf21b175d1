package attributes

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ResolveTraceID turns the --trace-id value into a trace ID.
// Returns the trace ID and any warnings to attach to the session span.
//
//   - "" generates a random ID
//   - 32 hex characters are used as is, in either case
//   - anything else is hashed with SHA-256
func ResolveTraceID(value string) (trace.TraceID, []attribute.KeyValue, error) {
	var traceID trace.TraceID

	if value == "" {
		if _, err := rand.Read(traceID[:]); err != nil {
			return trace.TraceID{}, nil, fmt.Errorf("failed to generate trace ID: %w", err)
		}
		return traceID, nil, nil
	}

	if len(value) == 32 {
		if parsed, err := trace.TraceIDFromHex(strings.ToLower(value)); err == nil {
			return parsed, nil, nil
		}
	}

	hash := sha256.Sum256([]byte(value))
	copy(traceID[:], hash[:16])

	warnings := []attribute.KeyValue{
		attribute.String("_trace_id_input", value),
		attribute.String("_trace_id_invalid_warning", fmt.Sprintf("%q is not a valid 32-char hex trace ID, used SHA-256 hash instead", value)),
	}
	return traceID, warnings, nil
}
