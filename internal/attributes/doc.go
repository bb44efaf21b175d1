// Package attributes evaluates custom span attributes and resolves the
// session trace ID.
//
// Custom attribute expressions use the expr language and are evaluated
// against one correlated message:
//
//	sender.name, sender.pid, sender.tid
//	receiver.name, receiver.pid, receiver.tid
//	message_id, direction
//
// A trace ID that is not 32 hex characters is hashed with SHA-256 to
// produce a valid one; an empty trace ID is generated at random.
package attributes
