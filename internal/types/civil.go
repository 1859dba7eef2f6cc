package types

import (
	"fmt"
	"time"
)

// CivilDateLayout is the wire format for civil dates ("2024-03-10").
const CivilDateLayout = "2006-01-02"

// CivilDate is a calendar date with no timezone and no time-of-day.
// The scheduling core operates on civil dates until WindowResolver binds
// them to instants; keeping the two apart at the type level prevents DST
// double-counting bugs.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewCivilDate constructs a CivilDate from its components. The components
// are normalized the way time.Date normalizes them (e.g. February 30
// becomes March 1 or 2), so callers validating user input should check
// IsValid on the raw components first.
func NewCivilDate(year int, month time.Month, day int) CivilDate {
	return CivilDateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// CivilDateOf extracts the civil date of t in t's location.
func CivilDateOf(t time.Time) CivilDate {
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

// ParseCivilDate parses a date in "YYYY-MM-DD" form.
func ParseCivilDate(s string) (CivilDate, error) {
	t, err := time.Parse(CivilDateLayout, s)
	if err != nil {
		return CivilDate{}, fmt.Errorf("parsing civil date %q: %w", s, err)
	}
	return CivilDateOf(t), nil
}

// String formats the date as "YYYY-MM-DD".
func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero value.
func (d CivilDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// IsValid reports whether the components form a real calendar date
// (e.g. rejects February 30).
func (d CivilDate) IsValid() bool {
	if d.Month < time.January || d.Month > time.December {
		return false
	}
	return d.Day >= 1 && d.Day <= DaysInMonth(d.Year, d.Month)
}

// utc returns the date at 00:00 UTC, the internal pivot for arithmetic.
// Using UTC keeps arithmetic free of DST effects.
func (d CivilDate) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to
// or after o.
func (d CivilDate) Compare(o CivilDate) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(int(d.Month) - int(o.Month))
	default:
		return sign(d.Day - o.Day)
	}
}

// Before reports whether d is earlier than o.
func (d CivilDate) Before(o CivilDate) bool { return d.Compare(o) < 0 }

// After reports whether d is later than o.
func (d CivilDate) After(o CivilDate) bool { return d.Compare(o) > 0 }

// Equal reports whether d and o are the same calendar date.
func (d CivilDate) Equal(o CivilDate) bool { return d.Compare(o) == 0 }

// AddDays returns the date n days after d (n may be negative).
func (d CivilDate) AddDays(n int) CivilDate {
	return CivilDateOf(d.utc().AddDate(0, 0, n))
}

// AddMonths returns the date n months after d. Overflowing days normalize
// forward the way time.AddDate does; pattern expansion never relies on
// this normalization (it checks day validity per month explicitly).
func (d CivilDate) AddMonths(n int) CivilDate {
	return CivilDateOf(d.utc().AddDate(0, n, 0))
}

// DaysSince returns the number of days from o to d (negative if d < o).
func (d CivilDate) DaysSince(o CivilDate) int {
	return int(d.utc().Sub(o.utc()) / (24 * time.Hour))
}

// Weekday returns the day of the week. time.Weekday numbers Sunday as 0,
// matching the platform's weekday convention.
func (d CivilDate) Weekday() time.Weekday {
	return d.utc().Weekday()
}

// MonthsSince returns the number of whole calendar months from o's month
// to d's month, ignoring the day component.
func (d CivilDate) MonthsSince(o CivilDate) int {
	return (d.Year-o.Year)*12 + int(d.Month) - int(o.Month)
}

// DaysInMonth returns the number of days in the given month, accounting
// for leap years.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MarshalJSON encodes the date as a "YYYY-MM-DD" string. The zero value
// encodes as null, which UnmarshalJSON decodes back to zero.
func (d CivilDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string. Empty strings and null
// decode to the zero value.
func (d *CivilDate) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = CivilDate{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("civil date must be a JSON string, got %s", s)
	}
	parsed, err := ParseCivilDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
