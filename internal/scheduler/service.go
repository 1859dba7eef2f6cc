package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"crewplan/internal/engine"
	"crewplan/internal/types"
)

// DefaultConcurrency bounds how many plans one RunDue invocation works
// on in parallel. Plans are independent, so the only pressure is on the
// database pool.
const DefaultConcurrency = 4

// PlanSource abstracts the plan reads the service needs. Using an
// interface allows clean testing without database dependencies.
type PlanSource interface {
	// GetPlan returns the plan by ID, or ErrCodeNotFoundPlan.
	GetPlan(ctx context.Context, planID string) (*types.SchedulePlan, error)
	// ListDue returns active plans whose next_run_at is at or before now
	// (or unset), oldest first. limit <= 0 means no cap.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*types.SchedulePlan, error)
	// HighWaterDate returns the furthest materialized occurrence date for
	// the plan, or nil when no jobs exist yet.
	HighWaterDate(ctx context.Context, planID string) (*types.CivilDate, error)
}

// PlanCommitter applies a computed generation result atomically: insert
// the jobs, advance the plan's run state, all in one transaction holding
// the plan's row lock.
type PlanCommitter interface {
	Commit(ctx context.Context, plan *types.SchedulePlan, result *types.GenerationResult, now time.Time) (*types.CommitSummary, error)
}

// PassHistory records pass executions for the ops API. Recording is
// best-effort; a history failure never fails the pass.
type PassHistory interface {
	StartPass(ctx context.Context, planID string, at time.Time) (int64, error)
	FinishPass(ctx context.Context, passID int64, rec *types.PassRecord) error
}

// JobAnnouncer publishes job.created events for jobs whose plan opted
// into automatic assignment.
type JobAnnouncer interface {
	AnnounceJobs(ctx context.Context, jobs []types.Job) error
}

// PassMetrics receives per-pass counters.
type PassMetrics interface {
	RecordPass(ctx context.Context, planID string, materialized, conflicts int, duration time.Duration)
}

// Service drives generation passes end to end: load the plan, compute
// the eligible occurrences, commit them, announce the new jobs.
type Service struct {
	source    PlanSource
	committer PlanCommitter
	history   PassHistory
	announcer JobAnnouncer
	metrics   PassMetrics
	scheduler *engine.Scheduler

	concurrency int
	logger      *slog.Logger
}

// ServiceConfig holds the configuration for creating a Service.
type ServiceConfig struct {
	Source    PlanSource
	Committer PlanCommitter
	// History, Announcer and Metrics are optional; nil disables the
	// corresponding side channel.
	History   PassHistory
	Announcer JobAnnouncer
	Metrics   PassMetrics
	// Scheduler overrides the generation core; nil uses the production
	// scheduler.
	Scheduler   *engine.Scheduler
	Concurrency int
	Logger      *slog.Logger
}

// NewService creates a Service with the given configuration.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = engine.NewScheduler(engine.SchedulerConfig{Logger: logger})
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		source:      cfg.Source,
		committer:   cfg.Committer,
		history:     cfg.History,
		announcer:   cfg.Announcer,
		metrics:     cfg.Metrics,
		scheduler:   sched,
		concurrency: concurrency,
		logger:      logger,
	}
}

// RunPlan executes one generation pass for a single plan at the given
// reference time and returns the commit summary. A paused or archived
// plan returns an empty summary and no error.
func (s *Service) RunPlan(ctx context.Context, planID string, now time.Time) (*types.CommitSummary, error) {
	plan, err := s.source.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return s.runPass(ctx, plan, now)
}

// Preview computes a generation pass for a single plan without
// committing anything. It reports what a real pass at the reference
// time would materialize, defer and schedule next.
func (s *Service) Preview(ctx context.Context, planID string, now time.Time) (*types.GenerationResult, error) {
	plan, err := s.source.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	highWater, err := s.source.HighWaterDate(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	return s.scheduler.GeneratePass(plan, now, highWater)
}

// RunDue executes generation passes for every plan due at the reference
// time, up to limit plans, with bounded concurrency. Individual plan
// failures are logged and counted but do not abort the batch; RunDue
// only returns an error when the due-plan listing itself fails.
func (s *Service) RunDue(ctx context.Context, now time.Time, limit int) (*GenerationOutput, error) {
	plans, err := s.source.ListDue(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("listing due plans: %w", err)
	}
	if len(plans) == 0 {
		s.logger.InfoContext(ctx, "no plans due", "reference_time", now.Format(time.RFC3339))
		return &GenerationOutput{}, nil
	}

	out := &GenerationOutput{}
	results := make([]*types.CommitSummary, len(plans))
	failed := make([]bool, len(plans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, plan := range plans {
		g.Go(func() error {
			summary, err := s.runPass(gctx, plan, now)
			if err != nil {
				// Each plan is independent; one bad plan must not starve
				// the rest of the batch.
				s.logger.ErrorContext(gctx, "generation pass failed",
					"plan_id", plan.ID,
					"error", err,
				)
				failed[i] = true
				return nil
			}
			results[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range plans {
		if failed[i] {
			out.PlansFailed++
			continue
		}
		out.PlansProcessed++
		if results[i] != nil {
			out.JobsCreated += len(results[i].CreatedJobs)
			out.Conflicts += results[i].Existing
		}
	}

	s.logger.InfoContext(ctx, "generation batch complete",
		"plans_processed", out.PlansProcessed,
		"plans_failed", out.PlansFailed,
		"jobs_created", out.JobsCreated,
		"conflicts", out.Conflicts,
	)
	return out, nil
}

// runPass is the per-plan pipeline shared by RunPlan and RunDue.
func (s *Service) runPass(ctx context.Context, plan *types.SchedulePlan, now time.Time) (*types.CommitSummary, error) {
	started := time.Now().UTC()
	passID := s.startHistory(ctx, plan.ID, started)

	if plan.Status != types.PlanStatusActive {
		s.finishHistory(ctx, passID, &types.PassRecord{
			PlanID: plan.ID,
			Status: types.PassStatusSkipped,
		})
		return &types.CommitSummary{}, nil
	}

	highWater, err := s.source.HighWaterDate(ctx, plan.ID)
	if err != nil {
		s.failHistory(ctx, passID, plan.ID, err)
		return nil, fmt.Errorf("loading high-water date for plan %s: %w", plan.ID, err)
	}

	result, err := s.scheduler.GeneratePass(plan, now, highWater)
	if err != nil {
		s.failHistory(ctx, passID, plan.ID, err)
		return nil, err
	}

	summary, err := s.committer.Commit(ctx, plan, result, now)
	if err != nil {
		s.failHistory(ctx, passID, plan.ID, err)
		return nil, err
	}

	s.announce(ctx, summary.CreatedJobs)
	if s.metrics != nil {
		s.metrics.RecordPass(ctx, plan.ID, len(summary.CreatedJobs), summary.Existing, time.Since(started))
	}
	s.finishHistory(ctx, passID, &types.PassRecord{
		PlanID:       plan.ID,
		Status:       types.PassStatusSuccess,
		Expanded:     result.Expanded,
		Materialized: len(summary.CreatedJobs),
		Conflicts:    summary.Existing,
	})

	s.logger.InfoContext(ctx, "generation pass committed",
		"plan_id", plan.ID,
		"expanded", result.Expanded,
		"excluded", result.Excluded,
		"deferred", result.Deferred,
		"created", len(summary.CreatedJobs),
		"existing", summary.Existing,
	)
	return summary, nil
}

// announce publishes job.created events for auto-assign jobs. Publishing
// is at-least-once and decoupled from the commit; a queue outage only
// costs an automatic assignment, never a job.
func (s *Service) announce(ctx context.Context, jobs []types.Job) {
	if s.announcer == nil {
		return
	}
	autoAssign := jobs[:0:0]
	for _, j := range jobs {
		if j.AutoAssign {
			autoAssign = append(autoAssign, j)
		}
	}
	if len(autoAssign) == 0 {
		return
	}
	if err := s.announcer.AnnounceJobs(ctx, autoAssign); err != nil {
		s.logger.ErrorContext(ctx, "failed to announce created jobs",
			"count", len(autoAssign),
			"error", err,
		)
	}
}

func (s *Service) startHistory(ctx context.Context, planID string, at time.Time) int64 {
	if s.history == nil {
		return 0
	}
	passID, err := s.history.StartPass(ctx, planID, at)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record pass start",
			"plan_id", planID,
			"error", err,
		)
		return 0
	}
	return passID
}

func (s *Service) finishHistory(ctx context.Context, passID int64, rec *types.PassRecord) {
	if s.history == nil || passID == 0 {
		return
	}
	if err := s.history.FinishPass(ctx, passID, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to record pass finish",
			"plan_id", rec.PlanID,
			"error", err,
		)
	}
}

func (s *Service) failHistory(ctx context.Context, passID int64, planID string, cause error) {
	s.finishHistory(ctx, passID, &types.PassRecord{
		PlanID: planID,
		Status: types.PassStatusFailed,
		Error:  cause.Error(),
	})
}
