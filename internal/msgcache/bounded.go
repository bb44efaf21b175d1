package msgcache

import (
	"fmt"
	"strconv"

	"github.com/Velocidex/ttlcache/v2"
	"github.com/mrzor/alpc-tracer/internal/alpc"
)

// Bounded is a size-limited cache. When the limit is reached a stored
// entry is evicted to make room for a new id. Entries carry no TTL, so
// ttlcache picks the victim by queue position: neither a lookup nor a
// match keeps an entry alive. A receive for an evicted id is reported as
// unmatched.
type Bounded struct {
	entries *ttlcache.Cache
}

// NewBounded creates a cache holding at most limit message ids.
func NewBounded(limit int) (*Bounded, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("cache limit must be positive, got %d", limit)
	}

	entries := ttlcache.NewCache()
	entries.SetCacheSizeLimit(limit)

	return &Bounded{entries: entries}, nil
}

// Upsert stores who as the holder of messageID (command).
func (b *Bounded) Upsert(messageID uint32, who alpc.Identity) {
	// Set only fails on a closed cache.
	_ = b.entries.Set(cacheKey(messageID), who)
}

// Lookup returns the holder of messageID (query).
func (b *Bounded) Lookup(messageID uint32) (alpc.Identity, bool) {
	value, err := b.entries.Get(cacheKey(messageID))
	if err != nil {
		return alpc.Identity{}, false
	}

	who, ok := value.(alpc.Identity)
	return who, ok
}

// Len returns the number of tracked message ids.
func (b *Bounded) Len() int {
	return b.entries.Count()
}

// Close stops the cache's background expiration goroutine.
func (b *Bounded) Close() error {
	return b.entries.Close()
}

func cacheKey(messageID uint32) string {
	return strconv.FormatUint(uint64(messageID), 16)
}
