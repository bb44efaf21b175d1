package procmeta

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessMetadata holds what the tracer reports about a process.
type ProcessMetadata struct {
	Name string // Image name, e.g. "svchost.exe"
}

// Resolver looks up metadata for a live process.
type Resolver func(pid uint32) (*ProcessMetadata, error)

// ResolveProcess queries the operating system through gopsutil.
func ResolveProcess(pid uint32) (*ProcessMetadata, error) {
	//nolint:gosec // Windows pids fit in int32
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("opening process %d: %w", pid, err)
	}
	name, err := p.Name()
	if err != nil {
		return nil, fmt.Errorf("reading name of process %d: %w", pid, err)
	}
	return &ProcessMetadata{Name: name}, nil
}
