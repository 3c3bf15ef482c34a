package streak

import (
	"fmt"
	"time"
)

// Day is a calendar date in the boundary's timezone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Boundary resolves instants to calendar days in one fixed timezone. Every
// "same day" decision in the engine goes through it.
type Boundary struct {
	loc *time.Location
}

// NewBoundary loads the named IANA zone, e.g. "Australia/Sydney".
func NewBoundary(tz string) (*Boundary, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Boundary{loc: loc}, nil
}

// NewBoundaryIn wraps an already loaded location.
func NewBoundaryIn(loc *time.Location) *Boundary {
	return &Boundary{loc: loc}
}

func (b *Boundary) Location() *time.Location {
	return b.loc
}

// Today returns the calendar day containing now.
func (b *Boundary) Today(now time.Time) Day {
	y, m, d := now.In(b.loc).Date()
	return Day{Year: y, Month: m, Day: d}
}

// SameDay reports whether prev and now fall on the same calendar day. A nil
// prev never matches.
func (b *Boundary) SameDay(prev *time.Time, now time.Time) bool {
	if prev == nil {
		return false
	}
	return b.Today(*prev) == b.Today(now)
}

// StartOfDay returns midnight of the day containing now.
func (b *Boundary) StartOfDay(now time.Time) time.Time {
	d := b.Today(now)
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, b.loc)
}

// EndOfPreviousDay returns the last whole second of the day before now's day.
func (b *Boundary) EndOfPreviousDay(now time.Time) time.Time {
	return b.StartOfDay(now).Add(-time.Second)
}
