package timesync

import (
	"time"
)

// Converter handles conversion from absolute timestamps to session time.
type Converter struct {
	start time.Time
}

// NewConverter creates a converter anchored at start. A zero start
// anchors at the first call to RelativeMillis instead.
func NewConverter(start time.Time) *Converter {
	return &Converter{start: start}
}

// RelativeMillis returns the milliseconds elapsed between the session
// start and t. Events stamped before the start yield negative values.
func (c *Converter) RelativeMillis(t time.Time) float64 {
	if c.start.IsZero() {
		c.start = t
	}
	return float64(t.Sub(c.start)) / float64(time.Millisecond)
}

// Start returns the session start used for conversions.
func (c *Converter) Start() time.Time {
	return c.start
}

// Absolute maps a session-relative millisecond offset back to wall-clock time.
func (c *Converter) Absolute(ms float64) time.Time {
	return c.start.Add(time.Duration(ms * float64(time.Millisecond)))
}
