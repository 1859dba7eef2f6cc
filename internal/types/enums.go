package types

// PlanStatus represents the lifecycle state of a SchedulePlan.
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "active"
	PlanStatusPaused   PlanStatus = "paused"
	PlanStatusArchived PlanStatus = "archived"
)

// JobStatus represents the lifecycle state of a materialized job.
// The engine only ever creates jobs in the pending state; the rest of the
// lifecycle belongs to the surrounding platform.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusAssigned  JobStatus = "assigned"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
)

// MaterializeOutcome is the result of handing one occurrence to the job
// boundary. The boundary enforces (plan, date) uniqueness, so a repeated
// submission reports AlreadyExists instead of creating a duplicate.
type MaterializeOutcome string

const (
	MaterializeCreated       MaterializeOutcome = "created"
	MaterializeAlreadyExists MaterializeOutcome = "already_exists"
)

// PassStatus is the terminal status of a generation pass, recorded in
// pass history.
type PassStatus string

const (
	PassStatusRunning PassStatus = "running"
	PassStatusSuccess PassStatus = "success"
	PassStatusSkipped PassStatus = "skipped"
	PassStatusFailed  PassStatus = "failed"
)
