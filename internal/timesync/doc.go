// Package timesync converts absolute event timestamps into milliseconds
// relative to the start of a trace session, the unit printed in every
// trace line.
package timesync
