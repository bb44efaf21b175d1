package eventprocessor

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrzor/alpc-tracer/internal/alpc"
	"github.com/mrzor/alpc-tracer/internal/correlator"
	"github.com/mrzor/alpc-tracer/internal/metrics"
)

type recordingHandler struct {
	calls []string
	err   error
}

func (h *recordingHandler) HandleWaitForReply(_ *alpc.Event) error {
	h.calls = append(h.calls, "wait")
	return h.err
}

func (h *recordingHandler) HandleSendMessage(_ *alpc.Event) error {
	h.calls = append(h.calls, "send")
	return h.err
}

func (h *recordingHandler) HandleReceiveMessage(_ *alpc.Event) error {
	h.calls = append(h.calls, "receive")
	return h.err
}

func TestProcessor_RoutesByKind(t *testing.T) {
	h := &recordingHandler{}
	p := NewProcessor(h, nil)

	for _, kind := range []alpc.Kind{
		alpc.KindSendMessage,
		alpc.KindWaitForNewMessage,
		alpc.KindReceiveMessage,
		alpc.KindUnwait,
		alpc.KindWaitForReply,
		alpc.Kind(200),
	} {
		require.NoError(t, p.HandleEvent(&alpc.Event{Kind: kind}))
	}

	assert.Equal(t, []string{"send", "receive", "wait"}, h.calls)
}

func TestProcessor_PropagatesHandlerError(t *testing.T) {
	h := &recordingHandler{err: errors.New("sink closed")}
	p := NewProcessor(h, nil)

	err := p.HandleEvent(&alpc.Event{Kind: alpc.KindReceiveMessage})
	assert.EqualError(t, err, "sink closed")
}

func TestProcessor_CountsEveryEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProcessor(&recordingHandler{}, metrics.New(reg))

	require.NoError(t, p.HandleEvent(&alpc.Event{Kind: alpc.KindSendMessage}))
	require.NoError(t, p.HandleEvent(&alpc.Event{Kind: alpc.KindUnwait}))
	require.NoError(t, p.HandleEvent(&alpc.Event{Kind: alpc.KindUnwait}))

	count, err := testutil.GatherAndCount(reg, "alpc_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per kind")
}

func TestProcessor_WithEngine(t *testing.T) {
	var buf bytes.Buffer
	engine := correlator.New(100, &buf, correlator.OutputTraceOnly, zap.NewNop())
	p := NewProcessor(engine, nil)

	events := []*alpc.Event{
		{Kind: alpc.KindSendMessage, Identity: alpc.Identity{PID: 100, Name: "A", TID: 1}, MessageID: 0x5, Timestamp: 1.0},
		{Kind: alpc.KindUnwait, Identity: alpc.Identity{PID: 300, Name: "C", TID: 3}, MessageID: 0x5, Timestamp: 1.2},
		{Kind: alpc.KindReceiveMessage, Identity: alpc.Identity{PID: 200, Name: "B", TID: 2}, MessageID: 0x5, Timestamp: 1.5},
	}
	for _, ev := range events {
		require.NoError(t, p.HandleEvent(ev))
	}

	assert.Equal(t, "1.5000 (100.1) ALPC A ---(0x5)--> B (200.2)\n", buf.String())
}
