package eventprocessor

import (
	"github.com/mrzor/alpc-tracer/internal/alpc"
	"github.com/mrzor/alpc-tracer/internal/correlator"
	"github.com/mrzor/alpc-tracer/internal/metrics"
)

// Processor routes events to the correlation handler.
type Processor struct {
	handler correlator.Handler
	metrics *metrics.Metrics
}

// NewProcessor creates a new event processor. m may be nil.
func NewProcessor(handler correlator.Handler, m *metrics.Metrics) *Processor {
	return &Processor{
		handler: handler,
		metrics: m,
	}
}

// HandleEvent routes events by kind to the handler.
func (p *Processor) HandleEvent(event *alpc.Event) error {
	p.metrics.ObserveEvent(event.Kind.String())

	switch event.Kind {
	case alpc.KindSendMessage:
		return p.handler.HandleSendMessage(event)
	case alpc.KindReceiveMessage:
		return p.handler.HandleReceiveMessage(event)
	case alpc.KindWaitForReply:
		return p.handler.HandleWaitForReply(event)
	default:
		// WaitForNewMessage, Unwait and unknown opcodes carry no sender
		return nil
	}
}
