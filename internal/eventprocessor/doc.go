// Package eventprocessor routes decoded ALPC events to the correlator.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│   eventstream (ETW session / replay)    │
//	└─────────────────┬───────────────────────┘
//	                  │ *alpc.Event, in arrival order
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│   eventprocessor                        │  ← Event routing
//	│   - Routes by event kind                │
//	│   - Counts events                       │
//	└─────────┬───────────────────────────────┘
//	          │
//	          ├──→ SendMessage ───────→ Handler.HandleSendMessage
//	          ├──→ WaitForReply ──────→ Handler.HandleWaitForReply
//	          ├──→ ReceiveMessage ────→ Handler.HandleReceiveMessage
//	          │
//	          └──→ WaitForNewMessage,
//	               Unwait ────────────→ counted, not correlated
//
// The processor delegates to the correlator.Handler interface, typically
// implemented by correlator.Engine.
package eventprocessor
