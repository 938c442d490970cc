package mpegts

import "time"

// ClockReference represents a Program/Elementary-Stream Clock Reference:
// a 33-bit, 90kHz base plus a 9-bit, 27MHz extension forming a single
// 27MHz counter: base*300 + extension.
type ClockReference struct {
	Base      int64 // 33 bits.
	Extension int64 // 9 bits.
}

func newClockReference(base, extension int64) *ClockReference {
	return &ClockReference{Base: base, Extension: extension}
}

// Duration returns the clock reference as a time.Duration since the
// stream's (arbitrary) clock epoch.
func (c *ClockReference) Duration() time.Duration {
	ticks := c.Base*300 + c.Extension
	return time.Duration(ticks * 1000 / 27)
}

// Time returns the clock reference as a time.Time anchored at the Unix
// epoch, useful only for relative comparisons within a single stream.
func (c *ClockReference) Time() time.Time {
	return time.Unix(0, 0).Add(c.Duration())
}
