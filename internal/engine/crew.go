package engine

import (
	"errors"

	"crewplan/internal/types"
)

// ValidateCrew checks the plan-level crew feasibility precondition:
// coherent min/max crew sizes and well-formed, duplicate-free preferred
// employee references. A violation blocks the entire generation pass for
// the plan before any expansion happens: crew feasibility is a plan
// property, not a per-date concern.
func ValidateCrew(planID string, p types.Policy) error {
	if err := types.ValidateCrewPolicy(p); err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return appErr.WithPlan(planID)
		}
		return err
	}
	return nil
}
