package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrzor/alpc-tracer/internal/config"
)

const session = `{"kind":"send","pid":100,"name":"A","tid":1,"msg":5,"ts":1.0}
{"kind":"receive","pid":200,"name":"B","tid":2,"msg":5,"ts":1.5}
not json
{"kind":"wait","pid":100,"name":"A","tid":1,"msg":6,"ts":2.0}
{"kind":"send","pid":300,"name":"C","tid":3,"msg":6,"ts":2.5}
{"kind":"receive","pid":100,"name":"A","tid":1,"msg":6,"ts":3.0}
{"kind":"unwait","pid":100,"name":"A","tid":1,"msg":6,"ts":3.5}
`

const traceLines = `1.5000 (100.1) ALPC A ---(0x5)--> B (200.2)
2.0000 (100.1) ALPC/WaitForReply (0x6)
3.0000 (100.1) ALPC A <--(0x6)--- C (300.3)
`

const summary = `======= ALPC =======
Filtered process connected through ALPC with:
- B (200)
- C (300)

`

func writeSession(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(session), 0o600))
	return path
}

func quietLogs(t *testing.T) {
	t.Helper()
	t.Setenv("ALPC_TRACE_LOG_LEVEL", "error")
	t.Setenv("ALPC_TRACE_LOG_FORMAT", "console")
}

func TestRun_ReplayModes(t *testing.T) {
	quietLogs(t)
	path := writeSession(t)

	tests := []struct {
		name  string
		flags []string
		want  string
	}{
		{"default", nil, traceLines + summary},
		{"summary only", []string{"--summary-only"}, summary},
		{"trace only", []string{"--trace-only"}, traceLines},
		{"mode flag", []string{"--mode", "summary-only"}, summary},
		{"bounded cache", []string{"--max-pending", "16"}, traceLines + summary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			args := append([]string{"alpc-tracer", "--pid", "100", "--replay", path}, tt.flags...)

			require.NoError(t, run(context.Background(), args, &stdout, &bytes.Buffer{}))
			assert.Equal(t, tt.want, stdout.String())
		})
	}
}

func TestRun_OutputFileAndRecord(t *testing.T) {
	quietLogs(t)
	path := writeSession(t)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "trace.txt")
	recordPath := filepath.Join(dir, "record.jsonl")

	var stdout bytes.Buffer
	err := run(context.Background(), []string{
		"alpc-tracer", "--pid", "100", "--replay", path,
		"--output", outPath, "--record", recordPath,
	}, &stdout, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Empty(t, stdout.String())
	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, traceLines+summary, string(written))

	// The malformed line is not recorded
	recorded, err := os.ReadFile(recordPath)
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(string(recorded), "\n"))

	// Replaying the recording reproduces the output
	stdout.Reset()
	require.NoError(t, run(context.Background(), []string{"alpc-tracer", "--pid", "100", "--replay", recordPath}, &stdout, &bytes.Buffer{}))
	assert.Equal(t, traceLines+summary, stdout.String())
}

func TestRun_OtherTargetSeesOnlyItsTraffic(t *testing.T) {
	quietLogs(t)
	path := writeSession(t)

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"alpc-tracer", "--pid", "200", "--replay", path}, &stdout, &bytes.Buffer{}))

	assert.Equal(t, `1.5000 (200.2) ALPC B <--(0x5)--- A (100.1)
======= ALPC =======
Filtered process connected through ALPC with:
- A (100)

`, stdout.String())
}

func TestRun_NoPeersNoSummary(t *testing.T) {
	quietLogs(t)
	path := writeSession(t)

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"alpc-tracer", "--pid", "999", "--replay", path}, &stdout, &bytes.Buffer{}))
	assert.Empty(t, stdout.String())
}

func TestRun_Errors(t *testing.T) {
	quietLogs(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing pid", []string{"alpc-tracer"}, "pid"},
		{"missing replay file", []string{"alpc-tracer", "--pid", "1", "--replay", filepath.Join(t.TempDir(), "absent.jsonl")}, "opening replay file"},
		{"bad attribute", []string{"alpc-tracer", "--pid", "1", "-a", "nope"}, "NAME=EXPR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args, &bytes.Buffer{}, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_HelpAndVersion(t *testing.T) {
	quietLogs(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"help without pid", []string{"alpc-tracer", "--help"}, "--pid"},
		{"help with pid", []string{"alpc-tracer", "--pid", "5", "--help"}, "usage: alpc-tracer"},
		{"version", []string{"alpc-tracer", "--version"}, version},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			require.NoError(t, run(context.Background(), tt.args, &stdout, &stderr))
			assert.Contains(t, stderr.String(), tt.want)
			assert.Empty(t, stdout.String(), "no session is started")
		})
	}
}

func TestRun_InvalidLogLevel(t *testing.T) {
	t.Setenv("ALPC_TRACE_LOG_LEVEL", "chatty")

	err := run(context.Background(), []string{"alpc-tracer", "--pid", "1"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALPC_TRACE_LOG_LEVEL")
}

func TestSetupCache(t *testing.T) {
	unbounded, err := setupCache(&config.Config{})
	require.NoError(t, err)
	assert.NoError(t, unbounded.Close())

	bounded, err := setupCache(&config.Config{MaxPending: 8})
	require.NoError(t, err)
	assert.NoError(t, bounded.Close())
}
