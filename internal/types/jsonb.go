package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions. These ensure the JSONB column types
// implement both sql.Scanner and driver.Valuer, catching signature drift
// at compile time. Scan is on pointer receivers; Value on value receivers.
var (
	_ sql.Scanner   = (*Pattern)(nil)
	_ driver.Valuer = Pattern{}
	_ sql.Scanner   = (*Policy)(nil)
	_ driver.Valuer = Policy{}
	_ sql.Scanner   = (*Anchor)(nil)
	_ driver.Valuer = Anchor{}
	_ sql.Scanner   = (*BlackoutList)(nil)
	_ driver.Valuer = BlackoutList(nil)
	_ sql.Scanner   = (*DateList)(nil)
	_ driver.Valuer = DateList(nil)
)

// DateList is a JSONB-backed list of civil dates (the plan's skip dates).
type DateList []CivilDate

// Contains reports whether the list holds the exact date d.
func (l DateList) Contains(d CivilDate) bool {
	for _, s := range l {
		if s.Equal(d) {
			return true
		}
	}
	return false
}

// BlackoutList is a JSONB-backed list of blackout ranges. Overlapping
// ranges compose via union: a date is excluded if any range contains it.
type BlackoutList []Blackout

// Covers reports whether any blackout range contains d.
func (l BlackoutList) Covers(d CivilDate) bool {
	for _, b := range l {
		if b.Contains(d) {
			return true
		}
	}
	return false
}

// scanJSONB scans a JSONB database value into a Go pointer. It handles
// nil values, []byte, and string representations.
func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// valueJSONB converts a Go value to a JSONB-compatible driver.Value.
func valueJSONB(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner for reading the pattern JSONB column.
func (p *Pattern) Scan(value any) error { return scanJSONB(p, value) }

// Value implements driver.Valuer for writing the pattern JSONB column.
func (p Pattern) Value() (driver.Value, error) { return valueJSONB(p) }

// Scan implements sql.Scanner for reading the policy JSONB column.
func (p *Policy) Scan(value any) error { return scanJSONB(p, value) }

// Value implements driver.Valuer for writing the policy JSONB column.
func (p Policy) Value() (driver.Value, error) { return valueJSONB(p) }

// Scan implements sql.Scanner for reading the anchor JSONB column.
func (a *Anchor) Scan(value any) error { return scanJSONB(a, value) }

// Value implements driver.Valuer for writing the anchor JSONB column.
func (a Anchor) Value() (driver.Value, error) { return valueJSONB(a) }

// Scan implements sql.Scanner for reading the blackouts JSONB column.
func (l *BlackoutList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	return scanJSONB(l, value)
}

// Value implements driver.Valuer for writing the blackouts JSONB column.
func (l BlackoutList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return valueJSONB(l)
}

// Scan implements sql.Scanner for reading the skip_dates JSONB column.
func (l *DateList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	return scanJSONB(l, value)
}

// Value implements driver.Valuer for writing the skip_dates JSONB column.
func (l DateList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return valueJSONB(l)
}
