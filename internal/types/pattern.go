package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// PatternType discriminates the recurrence pattern variants.
type PatternType string

const (
	PatternWeekly     PatternType = "weekly"
	PatternDayOfMonth PatternType = "dayOfMonth"
	PatternNthWeekday PatternType = "nthWeekday"
	PatternYearly     PatternType = "yearly"
)

// WeeklyPattern recurs on selected weekdays of every Nth week, counted
// from the week of the plan's start date. Weekday 0 is Sunday.
type WeeklyPattern struct {
	Every      int   `json:"every"`
	DaysOfWeek []int `json:"daysOfWeek"`
}

// DayOfMonthPattern recurs on a fixed day of every Nth month. Months
// shorter than Day produce no occurrence for that month; the day is
// never clamped to month end. Silently shifting a visit date would hand
// the crew dispatch a wrong date, so short months are skipped instead.
type DayOfMonthPattern struct {
	Every int `json:"every"`
	Day   int `json:"day"`
}

// NthWeekdayPattern recurs on the Nth occurrence of a weekday in every
// Nth month (e.g. the 2nd Tuesday). Nth 5 skips months without a fifth
// occurrence.
type NthWeekdayPattern struct {
	Every   int `json:"every"`
	Nth     int `json:"nth"`
	Weekday int `json:"weekday"`
}

// YearlyPattern recurs once per year on a fixed month and day. Years
// where the day does not exist (February 30) produce no occurrence.
type YearlyPattern struct {
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Pattern is the recurrence rule of a SchedulePlan, modelled as a tagged
// union: Type selects exactly one variant pointer, the rest are nil.
// This keeps invalid field combinations unrepresentable in handlers and
// the engine alike.
type Pattern struct {
	Type       PatternType
	Weekly     *WeeklyPattern
	DayOfMonth *DayOfMonthPattern
	NthWeekday *NthWeekdayPattern
	Yearly     *YearlyPattern
}

// patternEnvelope is the flat wire shape carrying the discriminant plus
// the union of all variant fields, as produced by the admin platform.
type patternEnvelope struct {
	Type       PatternType `json:"type"`
	Every      *int        `json:"every,omitempty"`
	DaysOfWeek []int       `json:"daysOfWeek,omitempty"`
	Day        *int        `json:"day,omitempty"`
	Nth        *int        `json:"nth,omitempty"`
	Weekday    *int        `json:"weekday,omitempty"`
	Month      *int        `json:"month,omitempty"`
}

// UnmarshalJSON decodes the flat wire shape into the tagged union.
// Unknown discriminants are preserved so Validate can report them with
// the offending value instead of failing the decode.
func (p *Pattern) UnmarshalJSON(data []byte) error {
	var env patternEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding recurrence pattern: %w", err)
	}

	*p = Pattern{Type: env.Type}
	every := 1
	if env.Every != nil {
		every = *env.Every
	}

	switch env.Type {
	case PatternWeekly:
		p.Weekly = &WeeklyPattern{Every: every, DaysOfWeek: env.DaysOfWeek}
	case PatternDayOfMonth:
		p.DayOfMonth = &DayOfMonthPattern{Every: every}
		if env.Day != nil {
			p.DayOfMonth.Day = *env.Day
		}
	case PatternNthWeekday:
		p.NthWeekday = &NthWeekdayPattern{Every: every}
		if env.Nth != nil {
			p.NthWeekday.Nth = *env.Nth
		}
		if env.Weekday != nil {
			p.NthWeekday.Weekday = *env.Weekday
		}
	case PatternYearly:
		p.Yearly = &YearlyPattern{}
		if env.Month != nil {
			p.Yearly.Month = *env.Month
		}
		if env.Day != nil {
			p.Yearly.Day = *env.Day
		}
	}
	return nil
}

// MarshalJSON encodes the union back into the flat wire shape.
func (p Pattern) MarshalJSON() ([]byte, error) {
	env := patternEnvelope{Type: p.Type}
	switch p.Type {
	case PatternWeekly:
		if p.Weekly != nil {
			env.Every = &p.Weekly.Every
			env.DaysOfWeek = p.Weekly.DaysOfWeek
		}
	case PatternDayOfMonth:
		if p.DayOfMonth != nil {
			env.Every = &p.DayOfMonth.Every
			env.Day = &p.DayOfMonth.Day
		}
	case PatternNthWeekday:
		if p.NthWeekday != nil {
			env.Every = &p.NthWeekday.Every
			env.Nth = &p.NthWeekday.Nth
			env.Weekday = &p.NthWeekday.Weekday
		}
	case PatternYearly:
		if p.Yearly != nil {
			env.Month = &p.Yearly.Month
			env.Day = &p.Yearly.Day
		}
	}
	return json.Marshal(env)
}

// Validate checks the discriminant and the selected variant's fields.
// It returns an AppError with code validation_invalid_pattern on failure.
func (p Pattern) Validate() error {
	switch p.Type {
	case PatternWeekly:
		if p.Weekly == nil {
			return invalidPattern("weekly pattern payload missing")
		}
		if p.Weekly.Every < 1 {
			return invalidPattern(fmt.Sprintf("every must be >= 1, got %d", p.Weekly.Every))
		}
		if len(p.Weekly.DaysOfWeek) == 0 {
			return invalidPattern("weekly pattern requires at least one weekday")
		}
		for _, wd := range p.Weekly.DaysOfWeek {
			if wd < 0 || wd > 6 {
				return invalidPattern(fmt.Sprintf("weekday %d outside 0..6", wd))
			}
		}
	case PatternDayOfMonth:
		if p.DayOfMonth == nil {
			return invalidPattern("dayOfMonth pattern payload missing")
		}
		if p.DayOfMonth.Every < 1 {
			return invalidPattern(fmt.Sprintf("every must be >= 1, got %d", p.DayOfMonth.Every))
		}
		if p.DayOfMonth.Day < 1 || p.DayOfMonth.Day > 31 {
			return invalidPattern(fmt.Sprintf("day %d outside 1..31", p.DayOfMonth.Day))
		}
	case PatternNthWeekday:
		if p.NthWeekday == nil {
			return invalidPattern("nthWeekday pattern payload missing")
		}
		if p.NthWeekday.Every < 1 {
			return invalidPattern(fmt.Sprintf("every must be >= 1, got %d", p.NthWeekday.Every))
		}
		if p.NthWeekday.Nth < 1 || p.NthWeekday.Nth > 5 {
			return invalidPattern(fmt.Sprintf("nth %d outside 1..5", p.NthWeekday.Nth))
		}
		if p.NthWeekday.Weekday < 0 || p.NthWeekday.Weekday > 6 {
			return invalidPattern(fmt.Sprintf("weekday %d outside 0..6", p.NthWeekday.Weekday))
		}
	case PatternYearly:
		if p.Yearly == nil {
			return invalidPattern("yearly pattern payload missing")
		}
		if p.Yearly.Month < 1 || p.Yearly.Month > 12 {
			return invalidPattern(fmt.Sprintf("month %d outside 1..12", p.Yearly.Month))
		}
		if p.Yearly.Day < 1 || p.Yearly.Day > 31 {
			return invalidPattern(fmt.Sprintf("day %d outside 1..31", p.Yearly.Day))
		}
	default:
		return invalidPattern(fmt.Sprintf("unknown pattern type %q", p.Type))
	}
	return nil
}

func invalidPattern(msg string) error {
	return NewAppError(ErrCodeInvalidPattern, msg, nil)
}

// PeriodEnd returns the civil date n pattern periods after the given
// date. A period is every*7 days for weekly patterns, every months for
// the monthly patterns, and one year for yearly patterns. Callers must
// Validate the pattern first; an unknown type falls back to one month
// per period.
func (p Pattern) PeriodEnd(from CivilDate, n int) CivilDate {
	switch p.Type {
	case PatternWeekly:
		return from.AddDays(n * p.Weekly.Every * 7)
	case PatternDayOfMonth:
		return from.AddMonths(n * p.DayOfMonth.Every)
	case PatternNthWeekday:
		return from.AddMonths(n * p.NthWeekday.Every)
	case PatternYearly:
		return from.AddMonths(n * 12)
	default:
		return from.AddMonths(n)
	}
}

// WeekdaySet returns the weekly variant's weekday selection as a set.
func (w *WeeklyPattern) WeekdaySet() map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(w.DaysOfWeek))
	for _, d := range w.DaysOfWeek {
		set[time.Weekday(d)] = true
	}
	return set
}
