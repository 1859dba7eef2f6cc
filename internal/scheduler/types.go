// Package scheduler implements the generation pass services for the
// CrewPlan engine.
//
// This file defines the shared payload types used by both the service
// routing logic and the cmd/generation-worker Lambda handler.
package scheduler

import "time"

// GenerationPayload is the JSON payload sent by the EventBridge schedule
// (or a manual invocation) to the generation worker.
//
//	{
//	  "plan_id": "pln_01HX...",            // optional; empty = all due plans
//	  "reference_time": "2026-03-01T03:00:00Z"  // optional override of now
//	}
type GenerationPayload struct {
	// PlanID targets a single plan. When empty the worker processes every
	// plan that is due at the reference time.
	PlanID string `json:"plan_id,omitempty"`
	// ReferenceTime allows manual invocation to specify a different "now"
	// for deterministic execution and backfilling. If nil, time.Now().UTC()
	// is used.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
	// Limit caps how many due plans one invocation processes, to stay
	// within the Lambda timeout during backlogs. 0 means no cap.
	Limit int `json:"limit,omitempty"`
}

// GenerationOutput summarizes one worker invocation for the invoker's
// logs.
type GenerationOutput struct {
	PlansProcessed int `json:"plans_processed"`
	PlansFailed    int `json:"plans_failed"`
	JobsCreated    int `json:"jobs_created"`
	Conflicts      int `json:"conflicts"`
}
