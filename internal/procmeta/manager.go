package procmeta

import (
	"sync"
)

// Manager caches process metadata keyed by pid.
type Manager struct {
	mu             sync.RWMutex
	resolve        Resolver
	metadata       map[uint32]*ProcessMetadata // PID -> process metadata
	metadataErrors map[uint32]error            // PID -> resolution errors
}

// NewManager creates a manager that resolves unknown pids with
// ResolveProcess.
func NewManager() *Manager {
	return NewManagerWithResolver(ResolveProcess)
}

// NewManagerWithResolver creates a manager backed by resolve.
func NewManagerWithResolver(resolve Resolver) *Manager {
	return &Manager{
		resolve:        resolve,
		metadata:       make(map[uint32]*ProcessMetadata),
		metadataErrors: make(map[uint32]error),
	}
}

// GetError retrieves the resolution error for a PID (query).
// Returns nil if no error exists for this PID.
func (m *Manager) GetError(pid uint32) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadataErrors[pid]
}

// Name returns the process name for pid, resolving it on first use.
// A failed resolution is cached as an empty name; the cause is kept for
// GetError. Processes that exit before their first event stay nameless.
func (m *Manager) Name(pid uint32) string {
	m.mu.RLock()
	md, ok := m.metadata[pid]
	m.mu.RUnlock()
	if ok {
		return md.Name
	}

	md, err := m.resolve(pid)
	if err != nil || md == nil {
		md = &ProcessMetadata{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another goroutine may have won the race
	if existing, ok := m.metadata[pid]; ok {
		return existing.Name
	}
	m.metadata[pid] = md
	if err != nil {
		m.metadataErrors[pid] = err
	}
	return md.Name
}
