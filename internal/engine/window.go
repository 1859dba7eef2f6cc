package engine

import (
	"errors"
	"time"

	"crewplan/internal/types"
)

// ResolveWindow binds each civil date to concrete start/end instants in
// the plan's timezone. If the plan has no window (or no start time), the
// occurrence is all-day: midnight to the next day's midnight, local time.
// With a start time, the end is either start+duration or derived from the
// end time's clock distance.
//
// Callers are expected to have run types.ValidateWindow first; a window
// that fails validation here still reports ErrCodeInvalidWindow.
func ResolveWindow(planID string, dates []types.CivilDate, w *types.Window, loc *time.Location) ([]types.Occurrence, error) {
	if err := types.ValidateWindow(w); err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return nil, appErr.WithPlan(planID)
		}
		return nil, err
	}

	allDay := w == nil || w.StartTime == ""
	var startH, startM, durationMin int
	if !allDay {
		startH, startM, _ = types.ParseClock(w.StartTime)
		if w.EndTime != "" {
			endH, endM, _ := types.ParseClock(w.EndTime)
			durationMin = (endH*60 + endM) - (startH*60 + startM)
		} else {
			durationMin = w.DurationMinutes
		}
	}

	out := make([]types.Occurrence, 0, len(dates))
	for _, d := range dates {
		occ := types.Occurrence{
			PlanID:   planID,
			Date:     d,
			Timezone: loc.String(),
			AllDay:   allDay,
		}
		if allDay {
			occ.Start = ResolveLocal(d, 0, 0, loc)
			occ.End = ResolveLocal(d.AddDays(1), 0, 0, loc)
		} else {
			occ.Start = ResolveLocal(d, startH, startM, loc)
			occ.End = occ.Start.Add(time.Duration(durationMin) * time.Minute)
		}
		out = append(out, occ)
	}
	return out, nil
}

// ResolveLocal converts a civil date plus wall-clock time into an instant
// in loc, handling DST transitions deterministically:
//
//   - A wall time skipped by a spring-forward transition resolves to the
//     transition instant itself (the first valid local instant).
//   - A wall time that occurs twice around a fall-back transition
//     resolves to the earlier of the two instants.
func ResolveLocal(d types.CivilDate, hour, minute int, loc *time.Location) time.Time {
	utcGuess := time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, time.UTC)

	// Sample the zone offsets in effect around the target and build a
	// candidate instant for each distinct offset. A candidate is valid
	// when its local reading matches the requested wall time exactly.
	seen := make(map[int]bool, 3)
	var offsets []int
	var best time.Time
	found := false
	for _, at := range []time.Time{
		utcGuess.Add(-30 * time.Hour),
		utcGuess,
		utcGuess.Add(30 * time.Hour),
	} {
		_, offset := at.In(loc).Zone()
		if seen[offset] {
			continue
		}
		seen[offset] = true
		offsets = append(offsets, offset)
		cand := utcGuess.Add(-time.Duration(offset) * time.Second)
		if matchesWall(cand.In(loc), d, hour, minute) {
			if !found || cand.Before(best) {
				best = cand
				found = true
			}
		}
	}
	if found {
		return best.In(loc)
	}

	// No candidate: the wall time sits inside a spring-forward gap. The
	// candidate built from the pre-transition offset lands after the gap
	// and the one from the post-transition offset lands before it, so the
	// transition instant, the first valid local instant, lies between
	// them. A larger offset yields an earlier instant.
	minOff, maxOff := offsets[0], offsets[0]
	for _, off := range offsets[1:] {
		if off < minOff {
			minOff = off
		}
		if off > maxOff {
			maxOff = off
		}
	}
	lo := utcGuess.Add(-time.Duration(maxOff) * time.Second)
	hi := utcGuess.Add(-time.Duration(minOff) * time.Second)
	if lo.Equal(hi) {
		return hi.In(loc)
	}
	return transitionBetween(lo, hi, loc)
}

// matchesWall reports whether t (already in local time) reads exactly as
// the requested civil date and wall clock.
func matchesWall(t time.Time, d types.CivilDate, hour, minute int) bool {
	y, m, day := t.Date()
	return y == d.Year && m == d.Month && day == d.Day &&
		t.Hour() == hour && t.Minute() == minute && t.Second() == 0
}

// transitionBetween finds the earliest instant in (lo, hi] carrying hi's
// zone offset. lo and hi must straddle exactly one offset transition.
func transitionBetween(lo, hi time.Time, loc *time.Location) time.Time {
	_, target := hi.In(loc).Zone()
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2).Truncate(time.Second)
		if _, off := mid.In(loc).Zone(); off == target {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi.In(loc)
}
