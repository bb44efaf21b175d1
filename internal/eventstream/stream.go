// Package eventstream pumps events from a Source to handlers on a single goroutine.
package eventstream

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/mrzor/alpc-tracer/internal/alpc"
)

// Source yields ALPC events in the order they occurred. Next returns
// io.EOF once the source is exhausted. A returned error wrapping
// ErrSkip marks a single undecodable event; the stream logs it and
// keeps reading.
type Source interface {
	Next(ctx context.Context) (*alpc.Event, error)
	Close() error
}

// ErrSkip marks a per-event decode failure that does not end the stream.
var ErrSkip = errors.New("event skipped")

// EventHandler is the interface for handling decoded events.
type EventHandler interface {
	HandleEvent(event *alpc.Event) error
}

// Stream reads events from a source and dispatches them to handlers.
type Stream struct {
	logger   *zap.Logger
	source   Source
	handlers []EventHandler
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	// written by the event loop, read after doneCh is closed
	err    error
	events uint64
}

// New creates a Stream. Handlers are called in the given order for every event.
func New(source Source, logger *zap.Logger, handlers ...EventHandler) *Stream {
	return &Stream{
		logger:   logger.Named("eventstream"),
		source:   source,
		handlers: handlers,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins reading events in a goroutine.
// It returns immediately; events are processed until the source is
// exhausted, the context is cancelled or Stop is called.
func (s *Stream) Start(ctx context.Context) error {
	go s.processEvents(ctx)
	return nil
}

// Stop signals the event loop to stop after the current event.
func (s *Stream) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// Done is closed when the event loop exits.
func (s *Stream) Done() <-chan struct{} {
	return s.doneCh
}

// Wait blocks until the event loop exits. It returns the source error
// that ended the stream, or nil on exhaustion, cancellation or Stop.
func (s *Stream) Wait() error {
	<-s.doneCh
	return s.err
}

// Events returns the number of events dispatched. Valid after Wait.
func (s *Stream) Events() uint64 {
	return s.events
}

// processEvents is the main event loop that reads and dispatches events.
func (s *Stream) processEvents(ctx context.Context) {
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		event, err := s.source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.logger.Debug("Source exhausted", zap.Uint64("events", s.events))
				return
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return
			case errors.Is(err, ErrSkip):
				s.logger.Warn("Skipping event", zap.Error(err))
				continue
			default:
				s.err = err
				return
			}
		}

		s.events++
		for _, h := range s.handlers {
			if err := h.HandleEvent(event); err != nil {
				s.logger.Error("Handling event",
					zap.Stringer("kind", event.Kind),
					zap.Uint32("message_id", event.MessageID),
					zap.Error(err))
			}
		}
	}
}
