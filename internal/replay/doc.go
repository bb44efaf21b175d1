// Package replay reads and writes ALPC events as JSON lines, so a live
// trace can be captured once and correlated again offline.
//
// One event per line:
//
//	{"kind":"ALPC/SendMessage","pid":100,"name":"A","tid":1,"msg":5,"ts":1.0}
//
// kind is an event name or one of the aliases send, receive, wait,
// wait-new and unwait. msg may also be a string in any base accepted by
// strconv.ParseUint ("0x5"). ts is milliseconds since session start.
// Blank lines are ignored.
package replay
