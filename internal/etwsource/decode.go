package etwsource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrzor/alpc-tracer/internal/alpc"
	"github.com/mrzor/alpc-tracer/internal/procmeta"
	"github.com/mrzor/alpc-tracer/internal/timesync"
)

// EventClassGUID identifies ALPC events on the kernel logger. Other
// kernel event classes reuse the same opcodes.
const EventClassGUID = "{45D8CCCD-539F-4B72-A8B7-0C6C26DAB4C7}"

const messageIDProperty = "MessageID"

// ErrUnsupported is returned by Open on builds without ETW support.
var ErrUnsupported = errors.New("ETW sessions require a windows/amd64 build with cgo")

// Config configures a live session.
type Config struct {
	// Names resolves pids to image names. Defaults to procmeta.NewManager().
	Names *procmeta.Manager
	// Clock converts event time. Defaults to one anchored at the first event.
	Clock *timesync.Converter
	// Buffer is the capacity of the callback to consumer handoff.
	Buffer int
}

func (c *Config) setDefaults() {
	if c.Names == nil {
		c.Names = procmeta.NewManager()
	}
	if c.Clock == nil {
		c.Clock = timesync.NewConverter(time.Time{})
	}
	if c.Buffer <= 0 {
		c.Buffer = 4096
	}
}

// rawEvent is the subset of an ETW event the decoder needs.
type rawEvent struct {
	provider   string // event class GUID in registry format
	opcode     uint8
	pid, tid   uint32
	timestamp  time.Time
	properties map[string]interface{}
}

// decoder turns raw events into alpc.Events.
type decoder struct {
	logger *zap.Logger
	names  *procmeta.Manager
	clock  *timesync.Converter
}

// decode returns false for events of other kernel classes and for
// opcodes outside the ALPC event set.
func (d *decoder) decode(raw rawEvent) (*alpc.Event, bool, error) {
	if !strings.EqualFold(raw.provider, EventClassGUID) {
		return nil, false, nil
	}

	kind := alpc.Kind(raw.opcode)
	switch kind {
	case alpc.KindSendMessage, alpc.KindReceiveMessage, alpc.KindWaitForReply,
		alpc.KindWaitForNewMessage, alpc.KindUnwait:
	default:
		return nil, false, nil
	}

	messageID, err := messageIDOf(raw.properties)
	if err != nil {
		return nil, false, fmt.Errorf("%s from pid %d: %w", kind, raw.pid, err)
	}

	name := d.names.Name(raw.pid)
	if name == "" {
		d.logger.Debug("Process name unavailable",
			zap.Uint32("pid", raw.pid),
			zap.NamedError("cause", d.names.GetError(raw.pid)))
	}

	return &alpc.Event{
		Kind: kind,
		Identity: alpc.Identity{
			PID:  int(raw.pid),
			Name: name,
			TID:  int(raw.tid),
		},
		MessageID: messageID,
		Timestamp: d.clock.RelativeMillis(raw.timestamp),
	}, true, nil
}

// messageIDOf reads the MessageID property, which TDH may render as a
// string or hand over as a number.
func messageIDOf(props map[string]interface{}) (uint32, error) {
	v, ok := props[messageIDProperty]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing %s property", messageIDProperty)
	}

	switch id := v.(type) {
	case uint32:
		return id, nil
	case uint64:
		if id > 0xFFFFFFFF {
			return 0, fmt.Errorf("%s %d overflows uint32", messageIDProperty, id)
		}
		return uint32(id), nil
	case int64:
		if id < 0 || id > 0xFFFFFFFF {
			return 0, fmt.Errorf("%s %d out of range", messageIDProperty, id)
		}
		return uint32(id), nil
	case string:
		parsed, err := strconv.ParseUint(id, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("parsing %s: %w", messageIDProperty, err)
		}
		return uint32(parsed), nil
	default:
		return 0, fmt.Errorf("%s has unexpected type %T", messageIDProperty, v)
	}
}
