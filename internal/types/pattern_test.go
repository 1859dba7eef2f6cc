package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// --- Validate Tests ---

func TestPattern_Validate_AcceptsWellFormedVariants(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
	}{
		{"weekly", Pattern{Type: PatternWeekly, Weekly: &WeeklyPattern{Every: 1, DaysOfWeek: []int{1, 3, 5}}}},
		{"biweekly single day", Pattern{Type: PatternWeekly, Weekly: &WeeklyPattern{Every: 2, DaysOfWeek: []int{0}}}},
		{"day of month", Pattern{Type: PatternDayOfMonth, DayOfMonth: &DayOfMonthPattern{Every: 1, Day: 15}}},
		{"day 31", Pattern{Type: PatternDayOfMonth, DayOfMonth: &DayOfMonthPattern{Every: 3, Day: 31}}},
		{"nth weekday", Pattern{Type: PatternNthWeekday, NthWeekday: &NthWeekdayPattern{Every: 1, Nth: 2, Weekday: 2}}},
		{"fifth saturday", Pattern{Type: PatternNthWeekday, NthWeekday: &NthWeekdayPattern{Every: 1, Nth: 5, Weekday: 6}}},
		{"yearly", Pattern{Type: PatternYearly, Yearly: &YearlyPattern{Month: 7, Day: 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.pattern.Validate(); err != nil {
				t.Errorf("Validate() returned error for valid pattern: %v", err)
			}
		})
	}
}

func TestPattern_Validate_RejectsMalformedVariants(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		wantMsg string
	}{
		{"weekly payload missing", Pattern{Type: PatternWeekly}, "weekly pattern payload missing"},
		{"weekly every zero", Pattern{Type: PatternWeekly, Weekly: &WeeklyPattern{Every: 0, DaysOfWeek: []int{1}}}, "every must be >= 1"},
		{"weekly no weekdays", Pattern{Type: PatternWeekly, Weekly: &WeeklyPattern{Every: 1}}, "at least one weekday"},
		{"weekly weekday 7", Pattern{Type: PatternWeekly, Weekly: &WeeklyPattern{Every: 1, DaysOfWeek: []int{7}}}, "weekday 7 outside 0..6"},
		{"weekly weekday negative", Pattern{Type: PatternWeekly, Weekly: &WeeklyPattern{Every: 1, DaysOfWeek: []int{-1}}}, "weekday -1 outside 0..6"},
		{"day of month payload missing", Pattern{Type: PatternDayOfMonth}, "dayOfMonth pattern payload missing"},
		{"day of month day zero", Pattern{Type: PatternDayOfMonth, DayOfMonth: &DayOfMonthPattern{Every: 1, Day: 0}}, "day 0 outside 1..31"},
		{"day of month day 32", Pattern{Type: PatternDayOfMonth, DayOfMonth: &DayOfMonthPattern{Every: 1, Day: 32}}, "day 32 outside 1..31"},
		{"nth weekday payload missing", Pattern{Type: PatternNthWeekday}, "nthWeekday pattern payload missing"},
		{"nth zero", Pattern{Type: PatternNthWeekday, NthWeekday: &NthWeekdayPattern{Every: 1, Nth: 0, Weekday: 1}}, "nth 0 outside 1..5"},
		{"nth six", Pattern{Type: PatternNthWeekday, NthWeekday: &NthWeekdayPattern{Every: 1, Nth: 6, Weekday: 1}}, "nth 6 outside 1..5"},
		{"yearly payload missing", Pattern{Type: PatternYearly}, "yearly pattern payload missing"},
		{"yearly month 13", Pattern{Type: PatternYearly, Yearly: &YearlyPattern{Month: 13, Day: 1}}, "month 13 outside 1..12"},
		{"yearly day zero", Pattern{Type: PatternYearly, Yearly: &YearlyPattern{Month: 6, Day: 0}}, "day 0 outside 1..31"},
		{"unknown type", Pattern{Type: "fortnightly"}, `unknown pattern type "fortnightly"`},
		{"empty type", Pattern{}, `unknown pattern type ""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pattern.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var appErr *AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("Validate() returned %T, want *AppError", err)
			}
			if appErr.Code != ErrCodeInvalidPattern {
				t.Errorf("Code = %s, want %s", appErr.Code, ErrCodeInvalidPattern)
			}
			if !strings.Contains(appErr.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want substring %q", appErr.Message, tt.wantMsg)
			}
		})
	}
}

// --- JSON Tests ---

func TestPattern_UnmarshalJSON_FlatEnvelope(t *testing.T) {
	input := `{"type":"nthWeekday","every":2,"nth":3,"weekday":4}`

	var p Pattern
	if err := json.Unmarshal([]byte(input), &p); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if p.Type != PatternNthWeekday || p.NthWeekday == nil {
		t.Fatalf("decoded wrong variant: %+v", p)
	}
	if p.NthWeekday.Every != 2 || p.NthWeekday.Nth != 3 || p.NthWeekday.Weekday != 4 {
		t.Errorf("NthWeekday = %+v, want every=2 nth=3 weekday=4", p.NthWeekday)
	}
	if p.Weekly != nil || p.DayOfMonth != nil || p.Yearly != nil {
		t.Error("non-selected variant pointers must stay nil")
	}
}

func TestPattern_UnmarshalJSON_EveryDefaultsToOne(t *testing.T) {
	tests := []struct {
		name  string
		input string
		every func(p Pattern) int
	}{
		{"weekly", `{"type":"weekly","daysOfWeek":[1]}`, func(p Pattern) int { return p.Weekly.Every }},
		{"day of month", `{"type":"dayOfMonth","day":10}`, func(p Pattern) int { return p.DayOfMonth.Every }},
		{"nth weekday", `{"type":"nthWeekday","nth":1,"weekday":1}`, func(p Pattern) int { return p.NthWeekday.Every }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Pattern
			if err := json.Unmarshal([]byte(tt.input), &p); err != nil {
				t.Fatalf("Unmarshal returned error: %v", err)
			}
			if got := tt.every(p); got != 1 {
				t.Errorf("every = %d, want 1 when absent from the payload", got)
			}
		})
	}
}

func TestPattern_UnmarshalJSON_PreservesUnknownType(t *testing.T) {
	var p Pattern
	if err := json.Unmarshal([]byte(`{"type":"lunar"}`), &p); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if p.Type != "lunar" {
		t.Errorf("Type = %q, want the unknown discriminant preserved for Validate", p.Type)
	}
	if err := p.Validate(); err == nil {
		t.Error("Validate() accepted an unknown pattern type")
	}
}

func TestPattern_MarshalJSON_RoundTrip(t *testing.T) {
	orig := Pattern{Type: PatternWeekly, Weekly: &WeeklyPattern{Every: 2, DaysOfWeek: []int{1, 4}}}

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var back Pattern
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if back.Type != PatternWeekly || back.Weekly == nil {
		t.Fatalf("round trip lost the variant: %s", data)
	}
	if back.Weekly.Every != 2 || len(back.Weekly.DaysOfWeek) != 2 {
		t.Errorf("round trip = %+v, want the original weekly payload", back.Weekly)
	}
}

// --- PeriodEnd Tests ---

func TestPattern_PeriodEnd(t *testing.T) {
	from := NewCivilDate(2024, time.January, 15)
	tests := []struct {
		name    string
		pattern Pattern
		n       int
		want    string
	}{
		{"weekly one period", Pattern{Type: PatternWeekly, Weekly: &WeeklyPattern{Every: 1, DaysOfWeek: []int{1}}}, 1, "2024-01-22"},
		{"biweekly three periods", Pattern{Type: PatternWeekly, Weekly: &WeeklyPattern{Every: 2, DaysOfWeek: []int{1}}}, 3, "2024-02-26"},
		{"day of month", Pattern{Type: PatternDayOfMonth, DayOfMonth: &DayOfMonthPattern{Every: 1, Day: 15}}, 2, "2024-03-15"},
		{"quarterly day of month", Pattern{Type: PatternDayOfMonth, DayOfMonth: &DayOfMonthPattern{Every: 3, Day: 15}}, 1, "2024-04-15"},
		{"nth weekday", Pattern{Type: PatternNthWeekday, NthWeekday: &NthWeekdayPattern{Every: 2, Nth: 1, Weekday: 1}}, 1, "2024-03-15"},
		{"yearly", Pattern{Type: PatternYearly, Yearly: &YearlyPattern{Month: 1, Day: 15}}, 1, "2025-01-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pattern.PeriodEnd(from, tt.n); got.String() != tt.want {
				t.Errorf("PeriodEnd(%s, %d) = %s, want %s", from, tt.n, got, tt.want)
			}
		})
	}
}

// --- WeekdaySet Tests ---

func TestWeeklyPattern_WeekdaySet(t *testing.T) {
	w := &WeeklyPattern{Every: 1, DaysOfWeek: []int{0, 3, 3, 6}}

	set := w.WeekdaySet()

	if len(set) != 3 {
		t.Errorf("WeekdaySet() has %d entries, want 3 with the duplicate collapsed", len(set))
	}
	for _, wd := range []time.Weekday{time.Sunday, time.Wednesday, time.Saturday} {
		if !set[wd] {
			t.Errorf("WeekdaySet() missing %v", wd)
		}
	}
	if set[time.Monday] {
		t.Error("WeekdaySet() contains Monday, which was not selected")
	}
}
