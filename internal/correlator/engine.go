package correlator

import (
	"fmt"
	"io"
	"sync"

	"github.com/Velocidex/ordereddict"
	"go.uber.org/zap"

	"github.com/mrzor/alpc-tracer/internal/alpc"
	"github.com/mrzor/alpc-tracer/internal/metrics"
	"github.com/mrzor/alpc-tracer/internal/msgcache"
)

const (
	summaryHeader = "======= ALPC ======="
	summaryLabel  = "Filtered process connected through ALPC with:"
)

// Handler receives the three ALPC event kinds that drive correlation.
type Handler interface {
	HandleWaitForReply(ev *alpc.Event) error
	HandleSendMessage(ev *alpc.Event) error
	HandleReceiveMessage(ev *alpc.Event) error
}

// Direction tells whether the target process received or sent a message.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Interaction is a receive matched to its sender where one side is the
// target process.
type Interaction struct {
	Timestamp float64
	MessageID uint32
	Sender    alpc.Identity
	Receiver  alpc.Identity
	Direction Direction
}

// Observer is notified of every Interaction after its trace line is written.
type Observer interface {
	ObserveInteraction(in Interaction) error
}

// Engine correlates ALPC sends and receives for one target process.
type Engine struct {
	logger    *zap.Logger
	targetPID int
	trace     io.Writer
	summary   io.Writer
	metrics   *metrics.Metrics
	observers []Observer

	mu    sync.Mutex
	cache msgcache.Cache
	peers *ordereddict.Dict // "name (pid)" -> true, in first-seen order
}

// New creates an Engine writing to output according to mode.
func New(targetPID int, output io.Writer, mode OutputMode, logger *zap.Logger) *Engine {
	return NewWithOptions(targetPID, output, mode, logger, Options{})
}

// NewWithOptions creates an Engine with options.
func NewWithOptions(targetPID int, output io.Writer, mode OutputMode, logger *zap.Logger, opts Options) *Engine {
	traceOut, summaryOut := output, output
	switch mode {
	case OutputSummaryOnly:
		traceOut = io.Discard
	case OutputTraceOnly:
		summaryOut = io.Discard
	}

	cache := opts.Cache
	if cache == nil {
		cache = msgcache.NewMap()
	}

	return &Engine{
		logger:    logger.Named("correlator"),
		targetPID: targetPID,
		trace:     traceOut,
		summary:   summaryOut,
		metrics:   opts.Metrics,
		observers: opts.Observers,
		cache:     cache,
		peers:     ordereddict.NewDict(),
	}
}

// HandleWaitForReply makes the waiting thread the holder of the message id.
// A wait issued by the target process is written to the trace output.
func (e *Engine) HandleWaitForReply(ev *alpc.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.upsert(ev)

	if ev.PID != e.targetPID {
		return nil
	}

	_, err := fmt.Fprintf(e.trace, "%.4f (%d.%d) %s (0x%X)\n",
		ev.Timestamp, ev.PID, ev.TID, alpc.KindWaitForReply, ev.MessageID)
	if err != nil {
		return fmt.Errorf("writing wait-for-reply trace line: %w", err)
	}
	return nil
}

// HandleSendMessage records the sender of the message id. Nothing is
// written until the matching receive.
func (e *Engine) HandleSendMessage(ev *alpc.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.upsert(ev)
	return nil
}

// HandleReceiveMessage matches the receive to the last sender of its
// message id. The cache entry is kept.
func (e *Engine) HandleReceiveMessage(ev *alpc.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sender, ok := e.cache.Lookup(ev.MessageID)
	if !ok {
		e.metrics.ObserveLookupMiss()
		return nil
	}

	in := Interaction{
		Timestamp: ev.Timestamp,
		MessageID: ev.MessageID,
		Sender:    sender,
		Receiver:  ev.Identity,
	}

	var err error
	switch {
	case ev.PID == e.targetPID:
		in.Direction = Inbound
		e.peers.Set(sender.Peer(), true)
		_, err = fmt.Fprintf(e.trace, "%.4f (%d.%d) ALPC %s <--(0x%X)--- %s (%d.%d)\n",
			ev.Timestamp, ev.PID, ev.TID, ev.Name, ev.MessageID,
			sender.Name, sender.PID, sender.TID)
	case sender.PID == e.targetPID:
		in.Direction = Outbound
		e.peers.Set(ev.Peer(), true)
		_, err = fmt.Fprintf(e.trace, "%.4f (%d.%d) ALPC %s ---(0x%X)--> %s (%d.%d)\n",
			ev.Timestamp, sender.PID, sender.TID, sender.Name, ev.MessageID,
			ev.Name, ev.PID, ev.TID)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("writing %s trace line: %w", in.Direction, err)
	}

	e.metrics.ObserveCorrelation(string(in.Direction))
	e.notify(in)
	return nil
}

// RenderSummary writes the peer set. Nothing is written when no peer was
// recorded. Call once, after the event stream is exhausted.
func (e *Engine) RenderSummary() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.peers.Len() == 0 {
		return nil
	}

	lines := make([]string, 0, e.peers.Len()+3)
	lines = append(lines, summaryHeader, summaryLabel)
	for _, peer := range e.peers.Keys() {
		lines = append(lines, "- "+peer)
	}
	lines = append(lines, "")

	for _, line := range lines {
		if _, err := fmt.Fprintln(e.summary, line); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	return nil
}

// Peers returns the recorded peers in first-seen order.
func (e *Engine) Peers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string{}, e.peers.Keys()...)
}

// Close releases the pending-message cache.
func (e *Engine) Close() error {
	return e.cache.Close()
}

func (e *Engine) upsert(ev *alpc.Event) {
	e.cache.Upsert(ev.MessageID, ev.Identity)
	e.metrics.SetPending(e.cache.Len())
}

// notify hands the interaction to observers. Observer failures are
// logged; they never affect correlation.
func (e *Engine) notify(in Interaction) {
	for _, o := range e.observers {
		if err := o.ObserveInteraction(in); err != nil {
			e.logger.Warn("Observer failed",
				zap.Uint32("message_id", in.MessageID),
				zap.String("direction", string(in.Direction)),
				zap.Error(err))
		}
	}
}
