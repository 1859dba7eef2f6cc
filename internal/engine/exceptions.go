package engine

import "crewplan/internal/types"

// FilterExceptions removes dates that match a skip date or fall inside
// any blackout range. Both checks operate on civil dates only; time of
// day never participates. Overlapping blackouts compose via union, and a
// date hit by both a skip date and a blackout is simply excluded once.
func FilterExceptions(dates []types.CivilDate, skip types.DateList, blackouts types.BlackoutList) []types.CivilDate {
	if len(skip) == 0 && len(blackouts) == 0 {
		return dates
	}
	out := dates[:0:0]
	for _, d := range dates {
		if skip.Contains(d) || blackouts.Covers(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}
