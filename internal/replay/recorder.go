package replay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/valyala/fastjson"

	"github.com/mrzor/alpc-tracer/internal/alpc"
)

// Recorder writes every event it handles as one JSON line. It implements
// eventstream.EventHandler.
type Recorder struct {
	w      *bufio.Writer
	closer io.Closer
	arena  fastjson.Arena
	buf    []byte
}

// NewRecorder writes events to w.
func NewRecorder(w io.Writer) *Recorder {
	r := &Recorder{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// Create records events to a new file at path, truncating an existing one.
func Create(path string) (*Recorder, error) {
	//nolint:gosec // Path is supplied by the operator on the command line
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating record file: %w", err)
	}
	return NewRecorder(f), nil
}

// HandleEvent appends event to the log.
func (r *Recorder) HandleEvent(event *alpc.Event) error {
	a := &r.arena
	o := a.NewObject()
	o.Set("kind", a.NewString(event.Kind.String()))
	o.Set("pid", a.NewNumberInt(event.PID))
	o.Set("name", a.NewString(event.Name))
	o.Set("tid", a.NewNumberInt(event.TID))
	o.Set("msg", a.NewNumberString(strconv.FormatUint(uint64(event.MessageID), 10)))
	o.Set("ts", a.NewNumberFloat64(event.Timestamp))

	r.buf = o.MarshalTo(r.buf[:0])
	r.buf = append(r.buf, '\n')
	a.Reset()

	if _, err := r.w.Write(r.buf); err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// Close flushes buffered events and closes the underlying file, if any.
func (r *Recorder) Close() error {
	if err := r.w.Flush(); err != nil {
		return fmt.Errorf("flushing record file: %w", err)
	}
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
