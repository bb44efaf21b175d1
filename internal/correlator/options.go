package correlator

import (
	"fmt"

	"github.com/mrzor/alpc-tracer/internal/metrics"
	"github.com/mrzor/alpc-tracer/internal/msgcache"
)

// OutputMode selects which of the two outputs are written.
type OutputMode int

const (
	// OutputBoth writes trace lines and the summary.
	OutputBoth OutputMode = iota
	// OutputSummaryOnly discards trace lines.
	OutputSummaryOnly
	// OutputTraceOnly discards the summary.
	OutputTraceOnly
)

// ParseOutputMode accepts "", "default", "summary-only" and "trace-only".
func ParseOutputMode(s string) (OutputMode, error) {
	switch s {
	case "", "default":
		return OutputBoth, nil
	case "summary-only":
		return OutputSummaryOnly, nil
	case "trace-only":
		return OutputTraceOnly, nil
	default:
		return OutputBoth, fmt.Errorf("unknown output mode %q (want default, summary-only or trace-only)", s)
	}
}

func (m OutputMode) String() string {
	switch m {
	case OutputSummaryOnly:
		return "summary-only"
	case OutputTraceOnly:
		return "trace-only"
	default:
		return "default"
	}
}

// Options configures the Engine beyond the required target and output.
type Options struct {
	// Cache is the pending-message cache. Defaults to an unbounded msgcache.Map.
	Cache msgcache.Cache

	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics

	// Observers are notified of every correlated interaction.
	Observers []Observer
}
