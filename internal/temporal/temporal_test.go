package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/geosense/landtraj/internal/errs"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse_PartialDates(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2020-05-17", date(2020, time.May, 17)},
		{"2020-05", date(2020, time.May, 1)},
		{"2020", date(2020, time.January, 1)},
		{"2020/05/17", date(2020, time.May, 17)},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if !got.Equal(c.want) {
			t.Fatalf("Parse(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestParseUpper_LastDayOfPeriod(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2020", date(2020, time.December, 31)},
		{"2020-05", date(2020, time.May, 31)},
		{"2021-02", date(2021, time.February, 28)},
		{"2020-02", date(2020, time.February, 29)},
		{"2020-05-17", date(2020, time.May, 17)},
	}
	for _, c := range cases {
		got, err := ParseUpper(c.in)
		if err != nil {
			t.Fatalf("ParseUpper(%q): %v", c.in, err)
		}
		if !got.Equal(c.want) {
			t.Fatalf("ParseUpper(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestParse_MalformedIsInvalidParameter(t *testing.T) {
	_, err := Parse("not-a-date")
	if !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("want ErrInvalidParameter, got %v", err)
	}
	if _, err := ParseBounds("2020", "never"); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Fatalf("bounds with malformed end: want ErrInvalidParameter, got %v", err)
	}
}

func TestBounds_Contains(t *testing.T) {
	b, err := ParseBounds("2019", "2020-05")
	if err != nil {
		t.Fatalf("ParseBounds: %v", err)
	}
	if !b.Contains(date(2019, time.June, 1)) {
		t.Fatalf("2019-06-01 should be inside [2019-01-01, 2020-05-31]")
	}
	if !b.Contains(date(2020, time.May, 31)) {
		t.Fatalf("end bound must be inclusive")
	}
	if b.Contains(date(2020, time.June, 1)) {
		t.Fatalf("2020-06-01 should be outside the window")
	}
	if b.Contains(date(2018, time.December, 31)) {
		t.Fatalf("2018-12-31 should be outside the window")
	}
}

func TestBounds_OpenEnds(t *testing.T) {
	b, err := ParseBounds("", "")
	if err != nil {
		t.Fatalf("ParseBounds: %v", err)
	}
	if !b.IsZero() || !b.Contains(date(1970, time.January, 1)) {
		t.Fatalf("empty bounds must contain everything")
	}

	onlyEnd, err := ParseBounds("", "2000")
	if err != nil {
		t.Fatalf("ParseBounds: %v", err)
	}
	if onlyEnd.Contains(date(2001, time.January, 1)) {
		t.Fatalf("instant after end must be excluded")
	}
	if !onlyEnd.Contains(date(1900, time.January, 1)) {
		t.Fatalf("open start must admit any earlier instant")
	}
}
