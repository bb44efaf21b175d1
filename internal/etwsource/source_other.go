//go:build !(windows && cgo && amd64)

package etwsource

import (
	"context"

	"go.uber.org/zap"

	"github.com/mrzor/alpc-tracer/internal/alpc"
)

// Source is unavailable on this build.
type Source struct{}

// Open always fails with ErrUnsupported.
func Open(_ Config, _ *zap.Logger) (*Source, error) {
	return nil, ErrUnsupported
}

// Next always fails with ErrUnsupported.
func (*Source) Next(_ context.Context) (*alpc.Event, error) {
	return nil, ErrUnsupported
}

// Close is a no-op.
func (*Source) Close() error { return nil }
