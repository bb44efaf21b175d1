// Package msgcache holds the pending-message cache: the identity of the
// party that most recently sent, or waited for a reply on, each ALPC
// message id.
//
// Commands:
//   - Upsert(id, identity) - store, replacing any previous holder
//
// Queries:
//   - Lookup(id) - current holder, if any
//   - Len() - number of tracked ids
//
// There is no removal: a receive leaves the entry in place so a later
// reuse of the id can still be attributed.
//
// Map is unbounded and is the default. Bounded caps the number of
// entries; once full, each new id evicts a stored one whether or not it
// was matched or looked up recently, and an evicted id can no longer be
// correlated.
//
// Neither type serializes callers. The correlator holds one lock over
// the cache and its peer set for each event.
package msgcache
