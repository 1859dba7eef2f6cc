package db

import (
	"context"

	"github.com/google/uuid"

	"crewplan/internal/types"
)

// JobRepository provides data access for the jobs table. The engine only
// ever inserts pending jobs and reads service dates; assignment and
// lifecycle updates belong to the admin platform.
type JobRepository struct {
	db DBTX
}

// NewJobRepository creates a new JobRepository backed by the given
// database connection (pool or transaction).
func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

// Materialize inserts one job for the occurrence, crew policy snapshot
// included. The UNIQUE (plan_id, service_date) constraint is the
// idempotence key: a duplicate insert is absorbed by ON CONFLICT DO
// NOTHING and reported as MaterializeAlreadyExists, never as an error, so
// retried passes and racing workers converge on the same row set.
func (r *JobRepository) Materialize(ctx context.Context, plan *types.SchedulePlan, occ types.Occurrence) (*types.Job, types.MaterializeOutcome, error) {
	job := &types.Job{
		ID:                 "job_" + uuid.New().String(),
		PlanID:             plan.ID,
		TenantID:           plan.TenantID,
		Anchor:             plan.Anchor,
		Date:               occ.Date,
		StartAt:            occ.Start,
		EndAt:              occ.End,
		Timezone:           occ.Timezone,
		AllDay:             occ.AllDay,
		Status:             types.JobStatusPending,
		MinCrewSize:        plan.Policy.MinCrewSize,
		MaxCrewSize:        plan.Policy.MaxCrewSize,
		PreferredEmployees: plan.Policy.PreferredEmployees,
		AutoAssign:         plan.Policy.AutoAssign,
	}

	tag, err := r.db.Exec(ctx,
		`INSERT INTO jobs (id, plan_id, tenant_id, anchor, service_date,
		                   start_at, end_at, timezone, all_day, status,
		                   min_crew_size, max_crew_size, preferred_employees, auto_assign,
		                   created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		 ON CONFLICT (plan_id, service_date) DO NOTHING`,
		job.ID,
		job.PlanID,
		job.TenantID,
		job.Anchor,
		occ.Date.String(),
		job.StartAt,
		job.EndAt,
		job.Timezone,
		job.AllDay,
		job.Status,
		job.MinCrewSize,
		job.MaxCrewSize,
		job.PreferredEmployees,
		job.AutoAssign,
	)
	if err != nil {
		return nil, "", types.NewAppError(types.ErrCodeInternalDB, "failed to materialize job", err).
			WithPlan(plan.ID).WithDate(occ.Date)
	}
	if tag.RowsAffected() == 0 {
		return nil, types.MaterializeAlreadyExists, nil
	}
	return job, types.MaterializeCreated, nil
}
