package db

import (
	"context"
	"log/slog"
	"time"

	"crewplan/internal/types"
)

// Committer applies a generation result in one transaction: lock the
// plan row, insert the jobs, advance the run state. The row lock
// serializes concurrent passes for the same plan; the jobs table's
// idempotence key covers anything the lock cannot, such as passes
// materializing against a plan snapshot read before the lock.
type Committer struct {
	pool   TxBeginner
	remote Materializer
	logger *slog.Logger
}

// Materializer turns one occurrence into a job at an idempotent
// boundary. JobRepository implements it against the local jobs table;
// external.PlatformClient implements it against the admin platform API.
type Materializer interface {
	Materialize(ctx context.Context, plan *types.SchedulePlan, occ types.Occurrence) (*types.Job, types.MaterializeOutcome, error)
}

// NewCommitter creates a Committer that materializes jobs into the
// local jobs table.
func NewCommitter(pool TxBeginner, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{pool: pool, logger: logger}
}

// NewRemoteCommitter creates a Committer that materializes jobs through
// the given remote boundary instead of the local jobs table. Run state
// still advances in the local transaction; duplicate protection comes
// from the remote side's conflict detection.
func NewRemoteCommitter(pool TxBeginner, remote Materializer, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{pool: pool, remote: remote, logger: logger}
}

// Commit writes the pass outcome. The reference time becomes the plan's
// last_run_at; the result's NextRunAt (possibly nil, meaning the pattern
// is exhausted) becomes next_run_at. Occurrences that already have a job
// are counted, not failed.
func (c *Committer) Commit(ctx context.Context, plan *types.SchedulePlan, result *types.GenerationResult, now time.Time) (*types.CommitSummary, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to begin commit transaction", err).WithPlan(plan.ID)
	}
	defer tx.Rollback(ctx)

	plans := NewPlanRepository(tx)
	var jobs Materializer = NewJobRepository(tx)
	if c.remote != nil {
		jobs = c.remote
	}

	// Relock and recheck: the plan may have been paused or rerun between
	// the service's read and this transaction.
	locked, err := plans.GetPlanForUpdate(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	if locked.Status != types.PlanStatusActive {
		c.logger.InfoContext(ctx, "plan deactivated since pass started, dropping result",
			"plan_id", plan.ID,
			"status", string(locked.Status),
		)
		return &types.CommitSummary{}, nil
	}
	if locked.LastRunAt != nil && now.Before(*locked.LastRunAt) {
		return nil, types.NewAppError(types.ErrCodeClockSkew,
			"a later pass already committed for this plan", nil).WithPlan(plan.ID)
	}

	summary := &types.CommitSummary{}
	for _, occ := range result.Occurrences {
		job, outcome, err := jobs.Materialize(ctx, plan, occ)
		if err != nil {
			return nil, err
		}
		if outcome == types.MaterializeAlreadyExists {
			summary.Existing++
			continue
		}
		summary.CreatedJobs = append(summary.CreatedJobs, *job)
	}

	state := types.RunState{
		LastRunAt: now,
		NextRunAt: result.NextRunAt,
	}
	if n := len(summary.CreatedJobs); n > 0 {
		state.LastJobRef = summary.CreatedJobs[n-1].ID
	}
	if err := plans.UpdateRunState(ctx, plan.ID, state); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to commit generation pass", err).WithPlan(plan.ID)
	}
	return summary, nil
}
