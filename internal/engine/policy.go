package engine

import (
	"time"

	"crewplan/internal/types"
)

// GateInput carries everything the policy gate needs to decide which
// windowed occurrences may be materialized right now.
type GateInput struct {
	Occurrences []types.Occurrence
	Policy      types.Policy
	Pattern     types.Pattern

	// Now is the injected reference instant; the gate never reads a
	// global clock.
	Now time.Time

	// HighWater is the furthest already-materialized occurrence date for
	// the plan, supplied by the boundary. Nil when nothing has been
	// materialized yet.
	HighWater *types.CivilDate

	// StartDate and Location anchor the lock-ahead horizon when no high
	// water mark exists yet.
	StartDate types.CivilDate
	Location  *time.Location
}

// GateOutput is the gate's verdict: the occurrences eligible now, the
// candidate nextRunAt, and the horizon used (exposed for logging).
type GateOutput struct {
	Eligible  []types.Occurrence
	Deferred  int
	NextRunAt *time.Time
	Horizon   types.CivilDate
}

// Gate applies the plan's lead-time and lock-ahead policy.
//
// Lead time: an occurrence is eligible only if its start instant is at
// least leadTimeDays*24h after now, so jobs are never created with too
// little staffing notice.
//
// Lock-ahead: eligible occurrences must not be dated after the horizon,
// which is the lock-ahead anchor advanced by lockAheadPeriods pattern
// periods. The anchor is the high-water date when one exists, otherwise
// the later of the plan start date and today (in the plan's timezone).
// This bounds how far a single pass commits jobs even for open-ended
// plans.
//
// NextRunAt is the earliest future start among occurrences that were
// computed but held back: the signal for the external cron to re-invoke
// generation. Occurrences already inside the lead-time window can never
// become eligible later and do not drive NextRunAt.
func Gate(in GateInput) GateOutput {
	leadCutoff := in.Now.Add(time.Duration(in.Policy.LeadTime()) * 24 * time.Hour)

	anchor := types.CivilDateOf(in.Now.In(in.Location))
	if anchor.Before(in.StartDate) {
		anchor = in.StartDate
	}
	if in.HighWater != nil && in.HighWater.After(anchor) {
		anchor = *in.HighWater
	}
	horizon := in.Pattern.PeriodEnd(anchor, in.Policy.LockAhead())

	out := GateOutput{Horizon: horizon}
	for _, occ := range in.Occurrences {
		if in.HighWater != nil && !occ.Date.After(*in.HighWater) {
			// At or behind the high-water mark: already materialized (or
			// permanently passed over); resubmitting is harmless thanks
			// to the idempotence key, but pointless.
			continue
		}
		eligible := !occ.Start.Before(leadCutoff) && !occ.Date.After(horizon)
		if eligible {
			out.Eligible = append(out.Eligible, occ)
			continue
		}
		out.Deferred++
		if occ.Start.After(in.Now) && occ.Date.After(horizon) {
			if out.NextRunAt == nil || occ.Start.Before(*out.NextRunAt) {
				start := occ.Start
				out.NextRunAt = &start
			}
		}
	}
	return out
}
