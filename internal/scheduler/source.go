package scheduler

import (
	"context"

	"crewplan/internal/types"
)

// HighWaterReader reads the latest materialized service date for a plan.
type HighWaterReader interface {
	HighWaterDate(ctx context.Context, planID string) (*types.CivilDate, error)
}

// RemoteHighWaterSource overlays a remote high-water reader on a local
// plan source. Used when jobs materialize through the platform API, so
// the high-water mark must come from the platform rather than the local
// jobs table.
type RemoteHighWaterSource struct {
	PlanSource
	Remote HighWaterReader
}

func (s RemoteHighWaterSource) HighWaterDate(ctx context.Context, planID string) (*types.CivilDate, error) {
	return s.Remote.HighWaterDate(ctx, planID)
}
