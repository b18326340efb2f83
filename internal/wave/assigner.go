package wave

import (
	"fmt"
	"time"

	"campaigndid/internal/contact"
)

// Assigner labels contact events with waves from a fixed date-range table.
// Events outside both ranges are always None; dates are never forced into
// the nearest wave.
type Assigner struct {
	wave1 Range
	wave2 Range
}

// NewAssigner creates an assigner over the two wave windows. The windows may
// not overlap, otherwise assignment would be ambiguous.
func NewAssigner(wave1, wave2 Range) (*Assigner, error) {
	if !wave1.IsValid() {
		return nil, fmt.Errorf("wave 1 range %s is invalid", wave1)
	}
	if !wave2.IsValid() {
		return nil, fmt.Errorf("wave 2 range %s is invalid", wave2)
	}
	if wave1.Contains(wave2.Start) || wave1.Contains(wave2.End) ||
		wave2.Contains(wave1.Start) || wave2.Contains(wave1.End) {
		return nil, fmt.Errorf("wave ranges %s and %s overlap", wave1, wave2)
	}
	return &Assigner{wave1: wave1, wave2: wave2}, nil
}

// Assign returns the wave for a contact date.
func (a *Assigner) Assign(t time.Time) Wave {
	switch {
	case a.wave1.Contains(t):
		return Wave1
	case a.wave2.Contains(t):
		return Wave2
	default:
		return None
	}
}

// Set is the set of non-None waves touched by a customer's events.
type Set struct {
	wave1 bool
	wave2 bool
}

// Has reports membership for a wave.
func (s Set) Has(w Wave) bool {
	switch w {
	case Wave1:
		return s.wave1
	case Wave2:
		return s.wave2
	default:
		return false
	}
}

// Len returns the number of distinct waves in the set.
func (s Set) Len() int {
	n := 0
	if s.wave1 {
		n++
	}
	if s.wave2 {
		n++
	}
	return n
}

// Contaminated reports whether the set touches both waves, which breaks a
// clean before/after comparison for the customer.
func (s Set) Contaminated() bool {
	return s.wave1 && s.wave2
}

// WaveSet computes the wave set over a customer's events.
func (a *Assigner) WaveSet(events []contact.Event) Set {
	var s Set
	for _, ev := range events {
		switch a.Assign(ev.Date) {
		case Wave1:
			s.wave1 = true
		case Wave2:
			s.wave2 = true
		}
	}
	return s
}
