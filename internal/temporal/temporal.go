// Package temporal parses the partial date strings accepted by trajectory
// queries: full dates, year-month and bare years, with '/' tolerated as a
// separator.
package temporal

import (
	"fmt"
	"strings"
	"time"

	"github.com/geosense/landtraj/internal/errs"
)

// Precision records how much of a date a partial string carried.
type Precision int

const (
	PrecisionDay Precision = iota
	PrecisionMonth
	PrecisionYear
)

var layouts = []struct {
	layout    string
	precision Precision
}{
	{"2006-01-02", PrecisionDay},
	{"2006-01", PrecisionMonth},
	{"2006", PrecisionYear},
}

// Parse builds a date from a partial string. Year-only and year-month
// strings resolve to the first day of the period.
func Parse(s string) (time.Time, error) {
	t, _, err := parse(s)
	return t, err
}

// ParseUpper builds a date acting as an upper reference bound: a year-only
// string resolves to December 31 of that year and a year-month string to
// the last day of that month. Full dates are unaffected.
func ParseUpper(s string) (time.Time, error) {
	t, p, err := parse(s)
	if err != nil {
		return time.Time{}, err
	}
	switch p {
	case PrecisionYear:
		return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC), nil
	case PrecisionMonth:
		// Day zero of the next month normalizes to the period's last day.
		return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC), nil
	default:
		return t, nil
	}
}

func parse(s string) (time.Time, Precision, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
	for _, l := range layouts {
		if t, err := time.Parse(l.layout, normalized); err == nil {
			return t, l.precision, nil
		}
	}
	return time.Time{}, PrecisionDay, fmt.Errorf("malformed date %q: %w", s, errs.ErrInvalidParameter)
}

// Bounds is an optional inclusive [Start, End] window. Start <= End is the
// caller's responsibility; an inverted range excludes every instant.
type Bounds struct {
	Start *time.Time
	End   *time.Time
}

// ParseBounds parses optional bound strings. The end bound follows the
// upper-reference rule of ParseUpper. Malformed strings are errors, never
// silently dropped.
func ParseBounds(start, end string) (Bounds, error) {
	var b Bounds
	if start != "" {
		t, err := Parse(start)
		if err != nil {
			return Bounds{}, fmt.Errorf("start date: %w", err)
		}
		b.Start = &t
	}
	if end != "" {
		t, err := ParseUpper(end)
		if err != nil {
			return Bounds{}, fmt.Errorf("end date: %w", err)
		}
		b.End = &t
	}
	return b, nil
}

// IsZero reports whether no bound is set.
func (b Bounds) IsZero() bool {
	return b.Start == nil && b.End == nil
}

// Contains reports whether t falls inside the window.
func (b Bounds) Contains(t time.Time) bool {
	if b.Start != nil && t.Before(*b.Start) {
		return false
	}
	if b.End != nil && t.After(*b.End) {
		return false
	}
	return true
}
