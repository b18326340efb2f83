// Package wave partitions contact events into the two campaign waves used as
// the before/after cohorts of the difference-in-differences design.
package wave

import (
	"fmt"
	"time"
)

// Wave tags a contact event with the cohort its date falls in.
type Wave int

const (
	// None marks events outside both configured wave windows.
	None Wave = iota
	// Wave1 is the pre-crisis cohort (default May-Aug 2008).
	Wave1
	// Wave2 is the post-crisis cohort (default Apr-Aug 2009).
	Wave2
)

// String returns the string representation of the wave.
func (w Wave) String() string {
	switch w {
	case Wave1:
		return "wave_1"
	case Wave2:
		return "wave_2"
	case None:
		return "none"
	default:
		return "unknown"
	}
}

// Treatment returns the treatment indicator value for the wave: Wave2 is the
// treated cohort.
func (w Wave) Treatment() float64 {
	if w == Wave2 {
		return 1
	}
	return 0
}

// Range is an inclusive date interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range, boundaries included.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// IsValid reports whether the range is well formed.
func (r Range) IsValid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

// MustRange builds an inclusive range from two YYYY-MM-DD strings. It panics
// on malformed input and exists for defaults and tests.
func MustRange(start, end string) Range {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		panic(err)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		panic(err)
	}
	return Range{Start: s, End: e}
}
