package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/mrzor/alpc-tracer/internal/correlator"
)

// CustomAttribute is one -a NAME=EXPR flag.
type CustomAttribute struct {
	Name       string
	Expression string
}

// Config holds the parsed command-line configuration
type Config struct {
	// PID is the filtered process
	PID int
	// Mode routes output between trace lines and summary
	Mode correlator.OutputMode
	// ReplayPath reads events from a JSON-lines file instead of ETW
	ReplayPath string
	// RecordPath copies every consumed event to a JSON-lines file
	RecordPath string
	// OutputPath receives the trace and summary; empty means stdout
	OutputPath string
	// MaxPending bounds the pending-message cache; 0 keeps it unbounded
	MaxPending int
	// MetricsListen serves /metrics on this address when set
	MetricsListen string
	// OTEL exports one span per correlated message
	OTEL bool
	// TraceID is a 32 hex char id, or any string hashed into one
	TraceID string
	// CustomAttributes are added to every exported span
	CustomAttributes []CustomAttribute
}

// ErrHelp is returned by ParseArgs after --help or --version output was
// written. Callers should exit successfully.
var ErrHelp = errors.New("help requested")

// ParseArgs parses command-line arguments and returns a Config.
// args[0] is the program name. Usage, version and parse errors are
// written to usage.
// Expected format: program_name --pid PID [flags]
func ParseArgs(args []string, version string, usage io.Writer) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no arguments provided")
	}

	app := kingpin.New(args[0], "Correlate ALPC messages sent and received by one process.")
	app.Version(version)
	app.UsageWriter(usage)
	app.ErrorWriter(usage)

	// kingpin keeps parsing after --help and --version; remember that one
	// of them asked to exit so required flags are not enforced.
	var exited bool
	app.Terminate(func(int) { exited = true })

	var (
		cfg         Config
		mode        string
		summaryOnly bool
		traceOnly   bool
		attrs       []string
	)

	app.Flag("pid", "Process to filter on.").Required().IntVar(&cfg.PID)
	app.Flag("mode", "Output routing: default, summary-only or trace-only.").Default("default").EnumVar(&mode, "default", "summary-only", "trace-only")
	app.Flag("summary-only", "Shortcut for --mode summary-only.").BoolVar(&summaryOnly)
	app.Flag("trace-only", "Shortcut for --mode trace-only.").BoolVar(&traceOnly)
	app.Flag("replay", "Read events from a JSON-lines file.").PlaceHolder("FILE").StringVar(&cfg.ReplayPath)
	app.Flag("record", "Record consumed events to a JSON-lines file.").PlaceHolder("FILE").StringVar(&cfg.RecordPath)
	app.Flag("output", "Write output to FILE instead of stdout.").Short('o').PlaceHolder("FILE").StringVar(&cfg.OutputPath)
	app.Flag("max-pending", "Bound the pending-message cache (0 = unbounded).").Default("0").IntVar(&cfg.MaxPending)
	app.Flag("metrics-listen", "Serve Prometheus metrics on ADDR.").PlaceHolder("ADDR").StringVar(&cfg.MetricsListen)
	app.Flag("otel", "Export correlated messages as OpenTelemetry spans.").BoolVar(&cfg.OTEL)
	app.Flag("trace-id", "Trace ID for exported spans.").Short('t').StringVar(&cfg.TraceID)
	app.Flag("attribute", "Custom span attribute, NAME=EXPR (repeatable).").Short('a').StringsVar(&attrs)

	_, err := app.Parse(args[1:])
	if exited {
		return nil, ErrHelp
	}
	if err != nil {
		return nil, err
	}

	if cfg.PID <= 0 {
		return nil, fmt.Errorf("--pid must be positive, got %d", cfg.PID)
	}
	if cfg.MaxPending < 0 {
		return nil, fmt.Errorf("--max-pending cannot be negative, got %d", cfg.MaxPending)
	}

	switch {
	case summaryOnly && traceOnly:
		return nil, fmt.Errorf("--summary-only and --trace-only are mutually exclusive")
	case (summaryOnly || traceOnly) && mode != "default":
		return nil, fmt.Errorf("--mode cannot be combined with --summary-only or --trace-only")
	case summaryOnly:
		mode = "summary-only"
	case traceOnly:
		mode = "trace-only"
	}
	if cfg.Mode, err = correlator.ParseOutputMode(mode); err != nil {
		return nil, err
	}

	for _, a := range attrs {
		attr, err := parseAttribute(a)
		if err != nil {
			return nil, err
		}
		cfg.CustomAttributes = append(cfg.CustomAttributes, attr)
	}

	return &cfg, nil
}

// parseAttribute splits NAME=EXPR on the first '='.
func parseAttribute(s string) (CustomAttribute, error) {
	name, expression, ok := strings.Cut(s, "=")
	if !ok {
		return CustomAttribute{}, fmt.Errorf("invalid attribute format %q, expected NAME=EXPR", s)
	}
	name = strings.TrimSpace(name)
	expression = strings.TrimSpace(expression)
	if name == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: name cannot be empty", s)
	}
	if expression == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: expression cannot be empty", s)
	}
	return CustomAttribute{Name: name, Expression: expression}, nil
}
