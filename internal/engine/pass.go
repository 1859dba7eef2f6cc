package engine

import (
	"fmt"
	"log/slog"
	"time"

	"crewplan/internal/types"
)

// PassState names the stages of a generation pass. One pass walks
// idle -> validating -> expanding -> materializing -> committed; paused
// and archived plans short-circuit to committed as a no-op, and any
// validation failure lands in failed with the plan untouched.
type PassState string

const (
	PassIdle          PassState = "idle"
	PassValidating    PassState = "validating"
	PassExpanding     PassState = "expanding"
	PassMaterializing PassState = "materializing"
	PassCommitted     PassState = "committed"
	PassFailed        PassState = "failed"
)

// extraPeriods is how many pattern periods past the lock-ahead horizon a
// pass expands, so at least one beyond-horizon occurrence exists to seed
// nextRunAt when the pattern is not exhausted.
const extraPeriods = 2

// Scheduler runs the pure side of generation passes. It holds no mutable
// state; a single Scheduler serves any number of plans concurrently.
type Scheduler struct {
	expander Expander
	logger   *slog.Logger
}

// SchedulerConfig holds the configuration for creating a Scheduler.
type SchedulerConfig struct {
	// Expander overrides pattern expansion; nil uses the production
	// expander.
	Expander Expander
	Logger   *slog.Logger
}

// NewScheduler creates a Scheduler with the given configuration.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	expander := cfg.Expander
	if expander == nil {
		expander = ExpandFunc(Expand)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{expander: expander, logger: logger}
}

// GeneratePass computes the eligible occurrences and candidate nextRunAt
// for one plan at the injected reference instant. It is side-effect-free:
// nothing is materialized and the plan is not modified. highWater is the
// furthest already-materialized occurrence date, or nil.
//
// Validation failures abort the pass for this plan only and carry the
// plan ID for the operator. A paused or archived plan yields an empty
// committed result rather than an error.
func (s *Scheduler) GeneratePass(plan *types.SchedulePlan, now time.Time, highWater *types.CivilDate) (*types.GenerationResult, error) {
	if plan.Status != types.PlanStatusActive {
		s.logger.Info("plan not active, skipping generation",
			"plan_id", plan.ID,
			"status", string(plan.Status),
		)
		return &types.GenerationResult{}, nil
	}

	// Refusing to run with a rewound clock avoids retroactively
	// contradicting occurrences an earlier pass already committed.
	if plan.LastRunAt != nil && now.Before(*plan.LastRunAt) {
		return nil, types.NewAppError(types.ErrCodeClockSkew,
			fmt.Sprintf("reference time %s precedes last run %s",
				now.UTC().Format(time.RFC3339), plan.LastRunAt.UTC().Format(time.RFC3339)),
			nil).WithPlan(plan.ID)
	}

	// Validating: plan-level preconditions, fail-fast before expansion.
	if err := ValidateCrew(plan.ID, plan.Policy); err != nil {
		return nil, err
	}
	if err := types.ValidatePlanDates(plan); err != nil {
		return nil, err
	}
	if err := plan.Pattern.Validate(); err != nil {
		var appErr *types.AppError
		if e, ok := err.(*types.AppError); ok {
			appErr = e.WithPlan(plan.ID)
		} else {
			appErr = types.NewAppError(types.ErrCodeInvalidPattern, err.Error(), err).WithPlan(plan.ID)
		}
		return nil, appErr
	}
	if err := types.ValidateWindow(plan.Window); err != nil {
		if e, ok := err.(*types.AppError); ok {
			return nil, e.WithPlan(plan.ID)
		}
		return nil, err
	}
	loc, err := plan.Location()
	if err != nil {
		return nil, err
	}

	// Expanding: compute the civil date range this pass looks at. The
	// lower bound never reaches into the past (lead time would reject it
	// anyway); the upper bound is the lock-ahead horizon plus a little
	// slack so nextRunAt can be derived, clipped to the plan's end date.
	today := types.CivilDateOf(now.In(loc))
	from := plan.StartDate
	if today.After(from) {
		from = today
	}
	anchor := from
	if highWater != nil && highWater.After(anchor) {
		anchor = *highWater
	}
	to := plan.Pattern.PeriodEnd(anchor, plan.Policy.LockAhead()+extraPeriods).AddDays(1)
	if plan.EndDate != nil && plan.EndDate.AddDays(1).Before(to) {
		to = plan.EndDate.AddDays(1)
	}

	dates, err := s.expander.Expand(plan.Pattern, plan.StartDate, from, to)
	if err != nil {
		if e, ok := err.(*types.AppError); ok {
			return nil, e.WithPlan(plan.ID)
		}
		return nil, err
	}

	filtered := FilterExceptions(dates, plan.SkipDates, plan.Blackouts)

	occurrences, err := ResolveWindow(plan.ID, filtered, plan.Window, loc)
	if err != nil {
		return nil, err
	}

	gate := Gate(GateInput{
		Occurrences: occurrences,
		Policy:      plan.Policy,
		Pattern:     plan.Pattern,
		Now:         now,
		HighWater:   highWater,
		StartDate:   plan.StartDate,
		Location:    loc,
	})

	result := &types.GenerationResult{
		Occurrences: gate.Eligible,
		NextRunAt:   gate.NextRunAt,
		Expanded:    len(dates),
		Excluded:    len(dates) - len(filtered),
		Deferred:    gate.Deferred,
	}

	s.logger.Debug("generation pass computed",
		"plan_id", plan.ID,
		"expanded", result.Expanded,
		"excluded", result.Excluded,
		"eligible", len(result.Occurrences),
		"deferred", result.Deferred,
		"horizon", gate.Horizon.String(),
	)
	return result, nil
}
