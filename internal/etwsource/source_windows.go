//go:build windows && cgo && amd64

package etwsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Velocidex/etw"
	"go.uber.org/zap"

	"github.com/mrzor/alpc-tracer/internal/alpc"
	"github.com/mrzor/alpc-tracer/internal/eventstream"
)

// Source is an eventstream.Source over a kernel ETW session.
type Source struct {
	logger  *zap.Logger
	session *etw.Session
	decoder decoder

	events chan *alpc.Event
	done   chan struct{}

	mu  sync.Mutex
	err error // why Process returned, if it failed

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open starts the kernel logger with ALPC events enabled. A kernel
// logger left running by another tool is stopped first.
func Open(cfg Config, logger *zap.Logger) (*Source, error) {
	cfg.setDefaults()

	s := &Source{
		logger: logger.Named("etwsource"),
		decoder: decoder{
			logger: logger.Named("etwsource"),
			names:  cfg.Names,
			clock:  cfg.Clock,
		},
		events: make(chan *alpc.Event, cfg.Buffer),
		done:   make(chan struct{}),
	}

	session, err := etw.NewKernelTraceSession(etw.RundownOptions{}, s.processEvent)
	var exists etw.ExistsError
	if errors.As(err, &exists) {
		s.logger.Info("Restarting kernel logger", zap.String("session", etw.KernelTraceSessionName))
		if err := etw.KillSession(etw.KernelTraceSessionName); err != nil {
			return nil, fmt.Errorf("stopping running kernel logger: %w", err)
		}
		session, err = etw.NewKernelTraceSession(etw.RundownOptions{}, s.processEvent)
	}
	if err != nil {
		if session != nil {
			_ = session.Close()
		}
		return nil, fmt.Errorf("starting kernel logger: %w", err)
	}
	s.session = session

	if err := enableKernelFlags(traceFlagNoSysConfig | traceFlagALPC); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("enabling ALPC events: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.events)

		if err := session.Process(); err != nil {
			s.mu.Lock()
			s.err = fmt.Errorf("processing ETW session: %w", err)
			s.mu.Unlock()
		}
	}()

	s.logger.Info("ETW session started",
		zap.String("session", etw.KernelTraceSessionName),
		zap.String("event_class", EventClassGUID))
	return s, nil
}

// processEvent runs on the ETW callback thread. It blocks while the
// consumer is behind so no event is reordered or lost.
func (s *Source) processEvent(e *etw.Event) {
	raw := rawEvent{
		provider:  e.Header.ProviderID.String(),
		opcode:    e.Header.OpCode,
		pid:       e.Header.ProcessID,
		tid:       e.Header.ThreadID,
		timestamp: e.Header.TimeStamp,
	}
	// Only ALPC events are worth parsing
	if !strings.EqualFold(raw.provider, EventClassGUID) {
		return
	}

	props, err := e.EventProperties(false)
	if err != nil {
		s.logger.Debug("Reading event properties", zap.Error(err))
		return
	}
	messageID, _ := props.Get(messageIDProperty)
	raw.properties = map[string]interface{}{messageIDProperty: messageID}

	event, ok, err := s.decoder.decode(raw)
	if err != nil {
		s.logger.Warn("Dropping undecodable ALPC event", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	select {
	case s.events <- event:
	case <-s.done:
	}
}

// Next returns the next ALPC event in arrival order.
func (s *Source) Next(ctx context.Context) (*alpc.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case event, ok := <-s.events:
		if ok {
			return event, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

// Close stops the session and waits for the processing goroutine.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.session.Close()
		s.wg.Wait()
	})
	return err
}

var _ eventstream.Source = (*Source)(nil)
