package engine

import (
	"time"

	"crewplan/internal/types"
)

// Expander abstracts pattern expansion so the pass orchestrator can be
// tested with a counting spy. Production code uses ExpandFunc(Expand).
type Expander interface {
	// Expand returns the ascending, de-duplicated civil dates in the
	// half-open range [from, to) that satisfy the pattern, anchored at
	// the plan's start date.
	Expand(p types.Pattern, anchor, from, to types.CivilDate) ([]types.CivilDate, error)
}

// ExpandFunc adapts a function to the Expander interface.
type ExpandFunc func(p types.Pattern, anchor, from, to types.CivilDate) ([]types.CivilDate, error)

// Expand implements Expander.
func (f ExpandFunc) Expand(p types.Pattern, anchor, from, to types.CivilDate) ([]types.CivilDate, error) {
	return f(p, anchor, from, to)
}

// Expand computes the candidate dates for a pattern within [from, to).
// The result never contains dates before the anchor (a plan produces
// nothing before its start date). Expansion is pure civil-calendar
// arithmetic on the proleptic Gregorian calendar; timezones only matter
// once WindowResolver binds the dates to instants.
//
// All short-month/short-year cases skip the period entirely rather than
// shifting the date (no clamping to month end): a shifted visit date
// would silently hand the crew dispatch a day nobody agreed to.
func Expand(p types.Pattern, anchor, from, to types.CivilDate) ([]types.CivilDate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if from.Before(anchor) {
		from = anchor
	}
	if !from.Before(to) {
		return nil, nil
	}

	switch p.Type {
	case types.PatternWeekly:
		return expandWeekly(p.Weekly, anchor, from, to), nil
	case types.PatternDayOfMonth:
		return expandDayOfMonth(p.DayOfMonth, anchor, from, to), nil
	case types.PatternNthWeekday:
		return expandNthWeekday(p.NthWeekday, anchor, from, to), nil
	default:
		return expandYearly(p.Yearly, anchor, from, to), nil
	}
}

// weekStart returns the Sunday on or before d. Weeks start on Sunday,
// matching the weekday-0 convention of the admin platform.
func weekStart(d types.CivilDate) types.CivilDate {
	return d.AddDays(-int(d.Weekday()))
}

func expandWeekly(w *types.WeeklyPattern, anchor, from, to types.CivilDate) []types.CivilDate {
	set := w.WeekdaySet()
	anchorWeek := weekStart(anchor)

	var out []types.CivilDate
	for d := from; d.Before(to); d = d.AddDays(1) {
		if !set[d.Weekday()] {
			continue
		}
		weeks := weekStart(d).DaysSince(anchorWeek) / 7
		if weeks%w.Every != 0 {
			continue
		}
		out = append(out, d)
	}
	return out
}

func expandDayOfMonth(m *types.DayOfMonthPattern, anchor, from, to types.CivilDate) []types.CivilDate {
	var out []types.CivilDate
	// Iterate month by month from the anchor's month, stepping by the
	// pattern interval, until the candidate month starts at or after to.
	for i := 0; ; i += m.Every {
		y, mo := monthAt(anchor, i)
		if types.NewCivilDate(y, mo, 1).Compare(to) >= 0 {
			break
		}
		if m.Day > types.DaysInMonth(y, mo) {
			continue // short month: skip, never clamp
		}
		d := types.CivilDate{Year: y, Month: mo, Day: m.Day}
		if inRange(d, anchor, from, to) {
			out = append(out, d)
		}
	}
	return out
}

func expandNthWeekday(n *types.NthWeekdayPattern, anchor, from, to types.CivilDate) []types.CivilDate {
	var out []types.CivilDate
	for i := 0; ; i += n.Every {
		y, mo := monthAt(anchor, i)
		if types.NewCivilDate(y, mo, 1).Compare(to) >= 0 {
			break
		}
		d, ok := nthWeekdayOfMonth(y, mo, n.Nth, time.Weekday(n.Weekday))
		if !ok {
			continue // no 5th occurrence this month: skip
		}
		if inRange(d, anchor, from, to) {
			out = append(out, d)
		}
	}
	return out
}

func expandYearly(yp *types.YearlyPattern, anchor, from, to types.CivilDate) []types.CivilDate {
	var out []types.CivilDate
	for year := anchor.Year; year <= to.Year; year++ {
		if yp.Day > types.DaysInMonth(year, time.Month(yp.Month)) {
			continue // e.g. Feb 29 in a non-leap year: skip
		}
		d := types.CivilDate{Year: year, Month: time.Month(yp.Month), Day: yp.Day}
		if inRange(d, anchor, from, to) {
			out = append(out, d)
		}
	}
	return out
}

// monthAt returns the year and month i months after the anchor's month.
func monthAt(anchor types.CivilDate, i int) (int, time.Month) {
	total := anchor.Year*12 + int(anchor.Month) - 1 + i
	return total / 12, time.Month(total%12 + 1)
}

// nthWeekdayOfMonth returns the date of the nth given weekday in a month,
// or ok=false when the month has no nth occurrence.
func nthWeekdayOfMonth(year int, month time.Month, nth int, wd time.Weekday) (types.CivilDate, bool) {
	first := types.CivilDate{Year: year, Month: month, Day: 1}
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	day := 1 + offset + (nth-1)*7
	if day > types.DaysInMonth(year, month) {
		return types.CivilDate{}, false
	}
	return types.CivilDate{Year: year, Month: month, Day: day}, true
}

// inRange reports whether d lies in [from, to) and not before the anchor.
func inRange(d, anchor, from, to types.CivilDate) bool {
	return !d.Before(anchor) && !d.Before(from) && d.Before(to)
}
