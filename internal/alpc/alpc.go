// Package alpc defines the ALPC event model shared by event sources and the correlator.
package alpc

import "fmt"

// Kind identifies an ALPC trace event. Values match the kernel ALPC
// provider opcodes.
//
//nolint:revive // Names follow the kernel event names
type Kind uint8

const (
	KindSendMessage       Kind = 33
	KindReceiveMessage    Kind = 34
	KindWaitForReply      Kind = 35
	KindWaitForNewMessage Kind = 36
	KindUnwait            Kind = 37
)

// String returns the trace event name, e.g. "ALPC/WaitForReply".
func (k Kind) String() string {
	switch k {
	case KindSendMessage:
		return "ALPC/SendMessage"
	case KindReceiveMessage:
		return "ALPC/ReceiveMessage"
	case KindWaitForReply:
		return "ALPC/WaitForReply"
	case KindWaitForNewMessage:
		return "ALPC/WaitForNewMessage"
	case KindUnwait:
		return "ALPC/Unwait"
	default:
		return fmt.Sprintf("ALPC/Opcode(%d)", uint8(k))
	}
}

// ParseKind maps an event name or one of the short aliases
// (send, receive, wait, wait-new, unwait) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "ALPC/SendMessage", "send":
		return KindSendMessage, nil
	case "ALPC/ReceiveMessage", "receive":
		return KindReceiveMessage, nil
	case "ALPC/WaitForReply", "wait":
		return KindWaitForReply, nil
	case "ALPC/WaitForNewMessage", "wait-new":
		return KindWaitForNewMessage, nil
	case "ALPC/Unwait", "unwait":
		return KindUnwait, nil
	default:
		return 0, fmt.Errorf("unknown ALPC event kind %q", s)
	}
}

// Identity is the process/thread that touched a message.
type Identity struct {
	PID  int
	Name string
	TID  int
}

// Peer formats the identity as a peer descriptor: "name (pid)".
func (i Identity) Peer() string {
	return fmt.Sprintf("%s (%d)", i.Name, i.PID)
}

// Event is a single decoded ALPC trace event.
type Event struct {
	Kind Kind
	Identity
	MessageID uint32
	// Timestamp is milliseconds relative to the start of the trace session.
	Timestamp float64
}
