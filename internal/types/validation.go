package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock parses a civil "HH:MM" clock string into hour and minute
// components. The format is strict: two digits, a colon, two digits.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("clock time %q is not in HH:MM form", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("clock time %q has invalid hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock time %q has invalid minute", s)
	}
	return hour, minute, nil
}

// ValidateWindow checks a plan's time window for structural validity.
// A nil window (all-day occurrences) is always valid. When StartTime is
// set, exactly the duration or the end time must make the window bounded,
// and EndTime must be strictly after StartTime on the same civil day.
// Overnight windows are an error, not a wrap to the next day.
func ValidateWindow(w *Window) error {
	if w == nil {
		return nil
	}
	if w.StartTime == "" {
		if w.EndTime != "" || w.DurationMinutes != 0 {
			return NewAppError(ErrCodeInvalidWindow, "end time or duration given without a start time", nil)
		}
		return nil
	}

	startH, startM, err := ParseClock(w.StartTime)
	if err != nil {
		return NewAppError(ErrCodeInvalidWindow, err.Error(), err)
	}

	if w.EndTime != "" {
		endH, endM, err := ParseClock(w.EndTime)
		if err != nil {
			return NewAppError(ErrCodeInvalidWindow, err.Error(), err)
		}
		if endH*60+endM <= startH*60+startM {
			return NewAppError(ErrCodeInvalidWindow,
				fmt.Sprintf("end time %s must be after start time %s", w.EndTime, w.StartTime), nil)
		}
		return nil
	}

	if w.DurationMinutes <= 0 {
		return NewAppError(ErrCodeInvalidWindow, "window requires an end time or a positive duration", nil)
	}
	return nil
}

// ValidatePlanDates checks the generation bounds: EndDate, when present,
// must not precede StartDate.
func ValidatePlanDates(p *SchedulePlan) error {
	if p.StartDate.IsZero() {
		return NewAppError(ErrCodeInvalidDateRange, "plan has no start date", nil).WithPlan(p.ID)
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return NewAppError(ErrCodeInvalidDateRange,
			fmt.Sprintf("end date %s precedes start date %s", p.EndDate, p.StartDate), nil).WithPlan(p.ID)
	}
	return nil
}

// ValidateCrewPolicy checks the plan-level crew feasibility precondition:
// MinCrewSize must not exceed MaxCrewSize when both are set, sizes must be
// at least one, and PreferredEmployees must not contain duplicates.
func ValidateCrewPolicy(p Policy) error {
	if p.MinCrewSize != nil && *p.MinCrewSize < 1 {
		return NewAppError(ErrCodeInvalidCrewPolicy,
			fmt.Sprintf("min crew size must be >= 1, got %d", *p.MinCrewSize), nil)
	}
	if p.MaxCrewSize != nil && *p.MaxCrewSize < 1 {
		return NewAppError(ErrCodeInvalidCrewPolicy,
			fmt.Sprintf("max crew size must be >= 1, got %d", *p.MaxCrewSize), nil)
	}
	if p.MinCrewSize != nil && p.MaxCrewSize != nil && *p.MinCrewSize > *p.MaxCrewSize {
		return NewAppError(ErrCodeInvalidCrewPolicy,
			fmt.Sprintf("min crew size %d exceeds max crew size %d", *p.MinCrewSize, *p.MaxCrewSize), nil)
	}
	seen := make(map[string]bool, len(p.PreferredEmployees))
	for _, id := range p.PreferredEmployees {
		if id == "" {
			return NewAppError(ErrCodeInvalidCrewPolicy, "preferred employee reference is empty", nil)
		}
		if seen[id] {
			return NewAppError(ErrCodeInvalidCrewPolicy, "duplicate preferred employee "+id, nil)
		}
		seen[id] = true
	}
	return nil
}
