package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"crewplan/internal/types"
)

// PlanRepository provides data access for the schedule_plans table. The
// JSONB columns (pattern, window, policy, anchor, skip_dates, blackouts)
// round-trip through the Scanner/Valuer implementations in the types
// package.
type PlanRepository struct {
	db DBTX
}

// NewPlanRepository creates a new PlanRepository backed by the given
// database connection (pool or transaction).
func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

// planColumns is the standard set of columns selected for plan queries.
const planColumns = `p.id, p.tenant_id, p.code, p.status,
	p.anchor, p.pattern, p.window, p.policy,
	p.timezone, p.start_date, p.end_date,
	p.skip_dates, p.blackouts,
	p.last_run_at, p.next_run_at, p.last_job_ref,
	p.created_at, p.updated_at`

// scanPlan scans a single plan row in planColumns order.
func scanPlan(row pgx.Row) (*types.SchedulePlan, error) {
	var p types.SchedulePlan
	var (
		window     *types.Window
		startDate  time.Time
		endDate    *time.Time
		lastJobRef *string
	)

	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.Code,
		&p.Status,
		&p.Anchor,
		&p.Pattern,
		&window,
		&p.Policy,
		&p.Timezone,
		&startDate,
		&endDate,
		&p.SkipDates,
		&p.Blackouts,
		&p.LastRunAt,
		&p.NextRunAt,
		&lastJobRef,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Window = window
	if lastJobRef != nil {
		p.LastJobRef = *lastJobRef
	}
	// DATE columns carry no zone; pgx scans them as midnight UTC.
	p.StartDate = types.CivilDateOf(startDate)
	if endDate != nil {
		d := types.CivilDateOf(*endDate)
		p.EndDate = &d
	}
	return &p, nil
}

// GetPlan returns the plan by ID, or ErrCodeNotFoundPlan when no row
// exists.
func (r *PlanRepository) GetPlan(ctx context.Context, planID string) (*types.SchedulePlan, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+planColumns+`
		 FROM schedule_plans p
		 WHERE p.id = $1`,
		planID,
	)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "schedule plan not found", err).WithPlan(planID)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get schedule plan", err)
	}
	return plan, nil
}

// GetPlanForUpdate loads the plan row with FOR UPDATE, serializing
// concurrent passes for the same plan. Must be called inside a
// transaction to be of any use.
func (r *PlanRepository) GetPlanForUpdate(ctx context.Context, planID string) (*types.SchedulePlan, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+planColumns+`
		 FROM schedule_plans p
		 WHERE p.id = $1
		 FOR UPDATE`,
		planID,
	)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "schedule plan not found", err).WithPlan(planID)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to lock schedule plan", err)
	}
	return plan, nil
}

// ListDue returns active plans due for a generation pass at the given
// reference time: next_run_at unset (never run) or at or before now.
// Oldest next_run_at first so starved plans catch up first. limit <= 0
// disables the cap.
func (r *PlanRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*types.SchedulePlan, error) {
	query := `SELECT ` + planColumns + `
		 FROM schedule_plans p
		 WHERE p.status = 'active'
		   AND (p.next_run_at IS NULL OR p.next_run_at <= $1)
		 ORDER BY p.next_run_at ASC NULLS FIRST, p.id ASC`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due plans", err)
	}
	defer rows.Close()

	var plans []*types.SchedulePlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan schedule plan", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate due plans", err)
	}
	return plans, nil
}

// HighWaterDate returns the furthest service date materialized for the
// plan, or nil when the plan has no jobs yet.
func (r *PlanRepository) HighWaterDate(ctx context.Context, planID string) (*types.CivilDate, error) {
	var max *string
	err := r.db.QueryRow(ctx,
		`SELECT MAX(service_date)::text
		 FROM jobs
		 WHERE plan_id = $1`,
		planID,
	).Scan(&max)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get high-water date", err)
	}
	if max == nil {
		return nil, nil
	}
	d, err := types.ParseCivilDate(*max)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "invalid high-water date in jobs table", err)
	}
	return &d, nil
}

// UpdateRunState writes the run-tracking fields back to the plan row.
// Called inside the commit transaction so the state advances atomically
// with the jobs it describes.
func (r *PlanRepository) UpdateRunState(ctx context.Context, planID string, state types.RunState) error {
	var lastJobRef *string
	if state.LastJobRef != "" {
		lastJobRef = &state.LastJobRef
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE schedule_plans
		 SET last_run_at = $2, next_run_at = $3, last_job_ref = COALESCE($4, last_job_ref), updated_at = NOW()
		 WHERE id = $1`,
		planID,
		state.LastRunAt,
		state.NextRunAt,
		lastJobRef,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update plan run state", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPlan, "schedule plan not found", nil).WithPlan(planID)
	}
	return nil
}
