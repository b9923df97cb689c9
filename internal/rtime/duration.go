// Package rtime carries fragment and window durations as a fixed-point
// count of nanoseconds rather than a bare float64, so that a value like
// EXT-X-TARGETDURATION can be derived by integer ceiling division instead
// of float rounding.
package rtime

import "fmt"

const perSecond = int64(1e9)

// Duration is a non-negative span of time, represented as whole
// nanoseconds. The zero value is zero duration.
type Duration int64

// Zero is the additive identity.
const Zero Duration = 0

// FromSeconds builds a Duration from a floating point second count. This
// is the only place float64 durations are allowed to enter the system;
// every interior computation afterwards is integer arithmetic.
func FromSeconds(seconds float64) Duration {
	return Duration(seconds * float64(perSecond))
}

// Seconds returns the duration as a floating point second count, for
// display in serialized manifests (EXTINF, etc).
func (d Duration) Seconds() float64 {
	return float64(d) / float64(perSecond)
}

// Millis returns the duration as whole milliseconds, for wire formats
// (e.g. DASH SegmentTimeline) that count in milliseconds rather than
// seconds.
func (d Duration) Millis() int64 {
	return int64(d) / 1e6
}

// CeilSeconds rounds d up to the nearest whole second using integer
// division, never going through a float.
func (d Duration) CeilSeconds() int64 {
	if d <= 0 {
		return 0
	}
	return (int64(d) + perSecond - 1) / perSecond
}

// Add returns d + other.
func (d Duration) Add(other Duration) Duration {
	return d + other
}

// Cmp returns -1, 0, or 1 as d is less than, equal to, or greater than other.
func (d Duration) Cmp(other Duration) int {
	switch {
	case d < other:
		return -1
	case d > other:
		return 1
	default:
		return 0
	}
}

// Max returns the larger of a and b.
func Max(a, b Duration) Duration {
	if a > b {
		return a
	}
	return b
}

// Sum returns the sum of all durations in ds.
func Sum(ds []Duration) Duration {
	var total Duration
	for _, d := range ds {
		total += d
	}
	return total
}

// String implements fmt.Stringer for log lines.
func (d Duration) String() string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// Unbounded is the sentinel used by a track's target window duration to
// mean "never evict on duration". Negative so any real Duration compares
// greater than it; eviction logic must check IsUnbounded rather than
// comparing directly.
const Unbounded Duration = -1

// IsUnbounded reports whether d is the Unbounded sentinel.
func (d Duration) IsUnbounded() bool {
	return d == Unbounded
}
