// Package etwsource reads ALPC events from a live kernel ETW session.
//
// The source runs the NT Kernel Logger with the ALPC enable flag, which
// needs administrator rights, and keeps only events of the ALPC event
// class. Raw events carry only pids; process names are resolved through
// procmeta and timestamps are made session-relative through timesync.
//
// Only windows/amd64 builds with cgo can open a session. Other builds
// return ErrUnsupported from Open, and the tracer can still correlate
// recorded sessions through the replay package.
package etwsource
