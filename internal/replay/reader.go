package replay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/valyala/fastjson"

	"github.com/mrzor/alpc-tracer/internal/alpc"
	"github.com/mrzor/alpc-tracer/internal/eventstream"
)

const maxLineSize = 1 << 20

// ErrMalformed is wrapped by every per-line decode error. It also
// matches eventstream.ErrSkip so a stream skips the line and goes on.
var ErrMalformed = fmt.Errorf("malformed replay line: %w", eventstream.ErrSkip)

// Reader is an eventstream.Source over a JSON-lines event log.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	parser  fastjson.Parser
	line    int
}

// NewReader reads events from r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	reader := &Reader{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}
	return reader
}

// Open reads events from the file at path.
func Open(path string) (*Reader, error) {
	//nolint:gosec // Path is supplied by the operator on the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay file: %w", err)
	}
	return NewReader(f), nil
}

// Next returns the next event, io.EOF at the end of input, or an error
// wrapping ErrMalformed for a line that cannot be decoded.
func (r *Reader) Next(ctx context.Context) (*alpc.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading replay line %d: %w", r.line+1, err)
			}
			return nil, io.EOF
		}
		r.line++

		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		event, err := r.decode(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", r.line, ErrMalformed, err)
		}
		return event, nil
	}
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Reader) decode(line []byte) (*alpc.Event, error) {
	v, err := r.parser.ParseBytes(line)
	if err != nil {
		return nil, err
	}

	kindValue, err := required(v, "kind").StringBytes()
	if err != nil {
		return nil, fmt.Errorf("kind: %w", err)
	}
	kind, err := alpc.ParseKind(string(kindValue))
	if err != nil {
		return nil, err
	}

	pid, err := required(v, "pid").Int()
	if err != nil {
		return nil, fmt.Errorf("pid: %w", err)
	}
	tid, err := required(v, "tid").Int()
	if err != nil {
		return nil, fmt.Errorf("tid: %w", err)
	}
	messageID, err := decodeMessageID(required(v, "msg"))
	if err != nil {
		return nil, fmt.Errorf("msg: %w", err)
	}
	ts, err := required(v, "ts").Float64()
	if err != nil {
		return nil, fmt.Errorf("ts: %w", err)
	}

	// name is optional: kernel events for exited processes carry none
	var name string
	if nv := v.Get("name"); nv != nil {
		b, err := nv.StringBytes()
		if err != nil {
			return nil, fmt.Errorf("name: %w", err)
		}
		name = string(b)
	}

	return &alpc.Event{
		Kind:      kind,
		Identity:  alpc.Identity{PID: pid, Name: name, TID: tid},
		MessageID: messageID,
		Timestamp: ts,
	}, nil
}

// missing stands in for absent fields so every accessor reports a type error.
var missing = fastjson.MustParse("null")

func required(v *fastjson.Value, key string) *fastjson.Value {
	if field := v.Get(key); field != nil {
		return field
	}
	return missing
}

func decodeMessageID(v *fastjson.Value) (uint32, error) {
	if v.Type() == fastjson.TypeString {
		s, _ := v.StringBytes()
		id, err := strconv.ParseUint(string(s), 0, 32)
		if err != nil {
			return 0, err
		}
		return uint32(id), nil
	}

	id, err := v.Uint64()
	if err != nil {
		return 0, err
	}
	if id > math.MaxUint32 {
		return 0, fmt.Errorf("value %d overflows uint32", id)
	}
	return uint32(id), nil
}
