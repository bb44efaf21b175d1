// Package output turns correlated ALPC messages into OpenTelemetry spans.
//
// SpanExporter is a pure formatting layer that:
//   - Receives correlator.Interaction values as a correlator.Observer
//   - Creates one span per message under a session span
//   - Sets span attributes from the interaction and custom expressions
//
// It does NOT:
//   - Decode raw ETW events
//   - Correlate sends with receives
//   - Write trace lines or the peer summary
//
// Timestamps are mapped back to wall-clock time through timesync, and
// custom attributes are delegated to attributes.Evaluator.
package output
