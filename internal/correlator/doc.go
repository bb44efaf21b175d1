// Package correlator pairs ALPC message receives with the sender that
// last touched the same message id, and reports the pairs that involve
// one target process.
//
// # Contract
//
// The Engine:
//  1. Records the sender identity on every SendMessage and WaitForReply
//     event (last writer wins per message id).
//  2. On ReceiveMessage, looks the sender up. If either the receiver or
//     the sender is the target process, the peer is added to the peer
//     set and one trace line is written. The receiver arm wins when
//     both match.
//  3. Writes a trace line for every WaitForReply issued by the target.
//  4. After the stream ends, RenderSummary writes the peer set once.
//
// # Output
//
//	1.5000 (200.2) ALPC B <--(0x5)--- A (100.1)
//	1.5000 (100.1) ALPC A ---(0x5)--> B (200.2)
//	2.0000 (100.1) ALPC/WaitForReply (0x7)
//
//	======= ALPC =======
//	Filtered process connected through ALPC with:
//	- A (100)
//
// Peers are listed in the order they were first seen.
//
// # Routing
//
// OutputSummaryOnly discards trace lines, OutputTraceOnly discards the
// summary. Both are written to the same writer otherwise.
//
// # Concurrency
//
// Handlers may be called from several goroutines; each event is
// processed under a single lock covering the cache and the peer set.
package correlator
