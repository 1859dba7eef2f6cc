package db

import (
	"context"
	"time"

	"crewplan/internal/types"
)

// PassHistoryRepository provides data access for the generation_passes
// table. Pass entries track generation executions for operational
// visibility and the ops API.
type PassHistoryRepository struct {
	db DBTX
}

// NewPassHistoryRepository creates a new PassHistoryRepository backed by
// the given database connection (pool or transaction).
func NewPassHistoryRepository(db DBTX) *PassHistoryRepository {
	return &PassHistoryRepository{db: db}
}

// StartPass inserts a new generation_passes row with status 'running'
// and returns the auto-generated BIGSERIAL ID.
func (r *PassHistoryRepository) StartPass(ctx context.Context, planID string, at time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO generation_passes (plan_id, started_at, status)
		 VALUES ($1, $2, 'running')
		 RETURNING id`,
		planID,
		at,
	).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to start pass record", err).WithPlan(planID)
	}
	return id, nil
}

// FinishPass updates the pass row with its terminal status and counters.
func (r *PassHistoryRepository) FinishPass(ctx context.Context, passID int64, rec *types.PassRecord) error {
	var errMsg *string
	if rec.Error != "" {
		errMsg = &rec.Error
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE generation_passes
		 SET finished_at = NOW(), status = $2, expanded = $3, materialized = $4, conflicts = $5, error = $6
		 WHERE id = $1`,
		passID,
		rec.Status,
		rec.Expanded,
		rec.Materialized,
		rec.Conflicts,
		errMsg,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish pass record", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "pass record not found", nil)
	}
	return nil
}

// ListPasses returns the most recent passes for a plan, newest first.
func (r *PassHistoryRepository) ListPasses(ctx context.Context, planID string, limit int) ([]types.PassRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, plan_id, started_at, finished_at, status, expanded, materialized, conflicts, COALESCE(error, '')
		 FROM generation_passes
		 WHERE plan_id = $1
		 ORDER BY started_at DESC, id DESC
		 LIMIT $2`,
		planID,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list passes", err).WithPlan(planID)
	}
	defer rows.Close()

	var recs []types.PassRecord
	for rows.Next() {
		var rec types.PassRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.PlanID,
			&rec.StartedAt,
			&rec.FinishedAt,
			&rec.Status,
			&rec.Expanded,
			&rec.Materialized,
			&rec.Conflicts,
			&rec.Error,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan pass record", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate pass records", err)
	}
	return recs, nil
}
