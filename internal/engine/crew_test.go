package engine

import (
	"errors"
	"testing"

	"crewplan/internal/types"
)

func TestValidateCrew_Valid(t *testing.T) {
	p := types.Policy{
		MinCrewSize:        intPtr(1),
		MaxCrewSize:        intPtr(4),
		PreferredEmployees: []string{"emp_1", "emp_2"},
	}
	if err := ValidateCrew("plan_1", p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCrew_MinAboveMax(t *testing.T) {
	p := types.Policy{MinCrewSize: intPtr(5), MaxCrewSize: intPtr(2)}

	err := ValidateCrew("plan_1", p)

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %v", err)
	}
	if appErr.Code != types.ErrCodeInvalidCrewPolicy {
		t.Errorf("code = %s, want %s", appErr.Code, types.ErrCodeInvalidCrewPolicy)
	}
	if appErr.Details["plan_id"] != "plan_1" {
		t.Errorf("details = %v, want plan_id annotation", appErr.Details)
	}
}

func TestValidateCrew_DuplicatePreferred(t *testing.T) {
	p := types.Policy{PreferredEmployees: []string{"emp_1", "emp_1"}}
	if err := ValidateCrew("plan_1", p); err == nil {
		t.Fatal("expected error for duplicate preferred employee")
	}
}

func TestValidateCrew_EmptyPolicyIsValid(t *testing.T) {
	if err := ValidateCrew("plan_1", types.Policy{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
