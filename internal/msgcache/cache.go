package msgcache

import (
	"github.com/mrzor/alpc-tracer/internal/alpc"
)

// Cache maps ALPC message ids to the identity that last touched them.
type Cache interface {
	Upsert(messageID uint32, who alpc.Identity)
	Lookup(messageID uint32) (alpc.Identity, bool)
	Len() int
	Close() error
}

// Map is the unbounded cache. Entries live until the cache is dropped.
type Map struct {
	entries map[uint32]alpc.Identity // message id -> last sender
}

// NewMap creates an empty unbounded cache.
func NewMap() *Map {
	return &Map{
		entries: make(map[uint32]alpc.Identity),
	}
}

// Upsert stores who as the holder of messageID (command).
// An existing holder is overwritten.
func (m *Map) Upsert(messageID uint32, who alpc.Identity) {
	m.entries[messageID] = who
}

// Lookup returns the holder of messageID (query).
func (m *Map) Lookup(messageID uint32) (alpc.Identity, bool) {
	who, ok := m.entries[messageID]
	return who, ok
}

// Len returns the number of tracked message ids.
func (m *Map) Len() int {
	return len(m.entries)
}

// Close is a no-op.
func (m *Map) Close() error {
	return nil
}
