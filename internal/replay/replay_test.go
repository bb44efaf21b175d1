package replay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrzor/alpc-tracer/internal/alpc"
	"github.com/mrzor/alpc-tracer/internal/eventstream"
)

func readAll(t *testing.T, r *Reader) ([]*alpc.Event, []error) {
	t.Helper()

	var events []*alpc.Event
	var errs []error
	for {
		ev, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return events, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, ev)
	}
}

func TestReader_Decode(t *testing.T) {
	input := `{"kind":"ALPC/SendMessage","pid":100,"name":"A","tid":1,"msg":5,"ts":1.0}

{"kind":"receive","pid":200,"name":"B","tid":2,"msg":"0x5","ts":1.5}
  {"kind":"wait","pid":100,"tid":1,"msg":7,"ts":2}
`
	events, errs := readAll(t, NewReader(strings.NewReader(input)))

	require.Empty(t, errs)
	require.Len(t, events, 3)
	assert.Equal(t, &alpc.Event{
		Kind:      alpc.KindSendMessage,
		Identity:  alpc.Identity{PID: 100, Name: "A", TID: 1},
		MessageID: 5,
		Timestamp: 1.0,
	}, events[0])
	assert.Equal(t, alpc.KindReceiveMessage, events[1].Kind)
	assert.Equal(t, uint32(5), events[1].MessageID)
	assert.Equal(t, alpc.KindWaitForReply, events[2].Kind)
	assert.Empty(t, events[2].Name, "name is optional")
}

func TestReader_MalformedLines(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not json", `send 100 5`},
		{"unknown kind", `{"kind":"connect","pid":1,"tid":1,"msg":1,"ts":0}`},
		{"missing pid", `{"kind":"send","tid":1,"msg":1,"ts":0}`},
		{"string pid", `{"kind":"send","pid":"1","tid":1,"msg":1,"ts":0}`},
		{"missing ts", `{"kind":"send","pid":1,"tid":1,"msg":1}`},
		{"negative msg", `{"kind":"send","pid":1,"tid":1,"msg":-1,"ts":0}`},
		{"msg overflow", `{"kind":"send","pid":1,"tid":1,"msg":4294967296,"ts":0}`},
		{"bad hex msg", `{"kind":"send","pid":1,"tid":1,"msg":"0xZZ","ts":0}`},
		{"numeric name", `{"kind":"send","pid":1,"name":5,"tid":1,"msg":1,"ts":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.line + "\n"))

			_, err := r.Next(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.ErrorIs(t, err, eventstream.ErrSkip)
			assert.Contains(t, err.Error(), "line 1")

			_, err = r.Next(context.Background())
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestReader_ContinuesAfterMalformedLine(t *testing.T) {
	input := "garbage\n" +
		`{"kind":"send","pid":1,"name":"A","tid":1,"msg":1,"ts":0}` + "\n"

	events, errs := readAll(t, NewReader(strings.NewReader(input)))

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "line 1")
	require.Len(t, events, 1)
	assert.Equal(t, "A", events[0].Name)
}

func TestReader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReader(strings.NewReader(`{"kind":"send","pid":1,"tid":1,"msg":1,"ts":0}`))
	_, err := r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecorder_ReplaysIdentically(t *testing.T) {
	want := []*alpc.Event{
		{Kind: alpc.KindSendMessage, Identity: alpc.Identity{PID: 100, Name: "app.exe", TID: 1}, MessageID: 0x10, Timestamp: 0.5},
		{Kind: alpc.KindReceiveMessage, Identity: alpc.Identity{PID: 200, Name: `C:\Windows\svc "host".exe`, TID: 2}, MessageID: 0xFFFFFFFF, Timestamp: 0.75},
		{Kind: alpc.KindUnwait, Identity: alpc.Identity{PID: 300, TID: 3}, MessageID: 0, Timestamp: 12.3456},
	}

	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	for _, ev := range want {
		require.NoError(t, rec.HandleEvent(ev))
	}
	require.NoError(t, rec.Close())

	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	got, errs := readAll(t, NewReader(&buf))
	require.Empty(t, errs)
	assert.Equal(t, want, got)
}

func TestRecorder_LineFormat(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	require.NoError(t, rec.HandleEvent(&alpc.Event{
		Kind:      alpc.KindWaitForReply,
		Identity:  alpc.Identity{PID: 100, Name: "A", TID: 1},
		MessageID: 7,
		Timestamp: 2,
	}))
	require.NoError(t, rec.Close())

	assert.Equal(t, `{"kind":"ALPC/WaitForReply","pid":100,"name":"A","tid":1,"msg":7,"ts":2}`+"\n", buf.String())
}

func TestRecorder_HighMessageIDIsUnsigned(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	require.NoError(t, rec.HandleEvent(&alpc.Event{
		Kind:      alpc.KindSendMessage,
		Identity:  alpc.Identity{PID: 1, Name: "A", TID: 1},
		MessageID: 0x80000000,
	}))
	require.NoError(t, rec.Close())

	assert.Contains(t, buf.String(), `"msg":2147483648`)

	events, errs := readAll(t, NewReader(&buf))
	require.Empty(t, errs)
	require.Len(t, events, 1)
	assert.Equal(t, uint32(0x80000000), events[0].MessageID)
}

func TestCreateAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")

	rec, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, rec.HandleEvent(&alpc.Event{Kind: alpc.KindSendMessage, Identity: alpc.Identity{PID: 1, Name: "A", TID: 1}, MessageID: 1}))
	require.NoError(t, rec.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer func() { assert.NoError(t, r.Close()) }()

	events, errs := readAll(t, r)
	require.Empty(t, errs)
	require.Len(t, events, 1)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.Error(t, err)
}
