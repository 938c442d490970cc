package mpegts

import "time"

// Modulo implements wrap-safe arithmetic on a bounded ring [0, MaxValue],
// with a sentinel Invalid value: Add, Diff and Sub return Invalid when
// either operand is Invalid. Wrap, Cmp, CmpRangeClosed,
// CmpRangeClosedOpen and RangeOverlap do not check for Invalid and treat
// it as an ordinary value.
// https://en.wikipedia.org/wiki/Modular_arithmetic
//
// Ported from the reference PTS/PCR wrap-around arithmetic used to compare
// 33-bit MPEG-2 timestamps across a clock rollover.
type Modulo struct {
	MaxValue int64
	Invalid  int64
}

// PTSModulo is the 33-bit, 90kHz wrapping clock used by PTS/DTS comparisons.
var PTSModulo = Modulo{MaxValue: 1<<33 - 1, Invalid: -1}

// PTSPerSecond is the tick rate of the PTS/DTS clock.
const PTSPerSecond = 90000

func (m Modulo) modulus() int64 {
	return m.MaxValue + 1
}

// Wrap returns x folded into [0, MaxValue].
func (m Modulo) Wrap(x int64) int64 {
	mod := m.modulus()
	return ((x % mod) + mod) % mod
}

// Add returns (x+y) wrapped into [0, MaxValue].
func (m Modulo) Add(x, y int64) int64 {
	if x == m.Invalid || y == m.Invalid {
		return m.Invalid
	}
	return m.Wrap(x + y)
}

// Diff returns (x-y) wrapped into [0, MaxValue].
func (m Modulo) Diff(x, y int64) int64 {
	if x == m.Invalid || y == m.Invalid {
		return m.Invalid
	}
	return m.Wrap(x - y)
}

// Sub returns (x-y) in (-modulus/2, modulus/2].
func (m Modulo) Sub(x, y int64) int64 {
	if x == m.Invalid || y == m.Invalid {
		return m.Invalid
	}
	diff := m.Diff(x, y)
	if diff > m.modulus()>>1 {
		return diff - m.modulus()
	}
	return diff
}

// Cmp returns -1, 0 or 1 as x is found to be earlier than, equal to, or
// later than y on the ring, accounting for wrap-around.
func (m Modulo) Cmp(x, y int64) int {
	d := m.Wrap(y - x)
	if d == 0 {
		return 0
	} else if d > m.modulus()>>1 {
		return 1
	}
	return -1
}

// CmpRangeClosed returns -1/0/1 as x is less than y1, within [y1, y2], or
// greater than y2.
func (m Modulo) CmpRangeClosed(x, y1, y2 int64) int {
	if m.Cmp(x, y1) < 0 {
		return -1
	} else if m.Cmp(x, y1) >= 0 && m.Cmp(x, y2) <= 0 {
		return 0
	}
	return 1
}

// CmpRangeClosedOpen returns -1/0/1 as x is less than y1, within [y1, y2),
// or greater than or equal to y2.
func (m Modulo) CmpRangeClosedOpen(x, y1, y2 int64) int {
	if m.Cmp(x, y1) < 0 {
		return -1
	} else if m.Cmp(x, y1) >= 0 && m.Cmp(x, y2) < 0 {
		return 0
	}
	return 1
}

// RangeOverlap reports whether [x1,x2] and [y1,y2] overlap on the ring.
func (m Modulo) RangeOverlap(x1, x2, y1, y2 int64) bool {
	return !(m.Cmp(y2, x1) < 0 || m.Cmp(y1, x2) > 0)
}

// PTSToDuration converts a PTS tick count to a time.Duration.
func PTSToDuration(pts int64) time.Duration {
	return time.Duration(pts) * time.Second / PTSPerSecond
}

// DurationToPTS converts a time.Duration to a PTS tick count.
func DurationToPTS(d time.Duration) int64 {
	return int64(d * PTSPerSecond / time.Second)
}
