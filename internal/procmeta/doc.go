// Package procmeta resolves and caches process names for event sources
// whose raw events carry only a pid.
//
// Manager provides command-query separation:
//
// Queries (read-only):
//   - GetError(pid) - Retrieve the resolution error
//
// Commands (mutations):
//   - Name(pid) - Resolve on first use, then serve from cache
//
// A pid is resolved once per session; a recycled pid keeps the name it
// was first seen with.
//
// Thread-safe with RWMutex for concurrent access.
package procmeta
