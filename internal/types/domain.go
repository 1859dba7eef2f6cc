package types

import "time"

// Plan policy defaults, applied when the CRUD layer leaves the fields
// unset.
const (
	DefaultLeadTimeDays     = 3
	DefaultLockAheadPeriods = 1
	DefaultTimezone         = "Europe/Istanbul"
)

// Anchor references the context a plan serves. The fields are opaque
// foreign keys into the surrounding platform; the engine never resolves
// them, it only copies them onto materialized jobs.
type Anchor struct {
	ApartmentRef string `json:"apartment_ref"`
	CategoryRef  string `json:"category_ref,omitempty"`
	ServiceRef   string `json:"service_ref,omitempty"`
	TemplateRef  string `json:"template_ref,omitempty"`
	ContractRef  string `json:"contract_ref,omitempty"`
}

// Window is a plan's optional daily time window. Times are civil clock
// strings ("HH:MM") interpreted in the plan's timezone by WindowResolver.
// An absent StartTime makes every occurrence all-day.
type Window struct {
	StartTime       string `json:"start_time,omitempty"`
	EndTime         string `json:"end_time,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// Policy is the generation policy of a plan. LeadTimeDays and
// LockAheadPeriods are pointers so that "unset" is distinguishable from
// an explicit zero; use the accessor methods to read them with defaults.
type Policy struct {
	LeadTimeDays       *int     `json:"lead_time_days,omitempty"`
	LockAheadPeriods   *int     `json:"lock_ahead_periods,omitempty"`
	AutoAssign         bool     `json:"auto_assign"`
	PreferredEmployees []string `json:"preferred_employees,omitempty"`
	MinCrewSize        *int     `json:"min_crew_size,omitempty"`
	MaxCrewSize        *int     `json:"max_crew_size,omitempty"`
}

// LeadTime returns the configured lead time in days, defaulting to
// DefaultLeadTimeDays when unset.
func (p Policy) LeadTime() int {
	if p.LeadTimeDays == nil {
		return DefaultLeadTimeDays
	}
	return *p.LeadTimeDays
}

// LockAhead returns the configured lock-ahead period count, defaulting to
// DefaultLockAheadPeriods when unset.
func (p Policy) LockAhead() int {
	if p.LockAheadPeriods == nil {
		return DefaultLockAheadPeriods
	}
	return *p.LockAheadPeriods
}

// Blackout is an inclusive civil-date range during which no occurrences
// are generated. A nil To means the range covers only From. A To earlier
// than From is clamped to From rather than rejected.
type Blackout struct {
	From   CivilDate  `json:"from"`
	To     *CivilDate `json:"to,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

// End returns the inclusive end of the range with the clamping rule
// applied.
func (b Blackout) End() CivilDate {
	if b.To == nil || b.To.Before(b.From) {
		return b.From
	}
	return *b.To
}

// Contains reports whether d falls inside the inclusive range.
func (b Blackout) Contains(d CivilDate) bool {
	return !d.Before(b.From) && !d.After(b.End())
}

// SchedulePlan is the unit of recurrence configuration. Plans are created
// and edited by the surrounding CRUD layer; the engine reads them and
// writes back only the run-state fields after a generation pass.
type SchedulePlan struct {
	ID       string     `json:"id"`
	TenantID string     `json:"tenant_id"`
	Code     string     `json:"code"`
	Status   PlanStatus `json:"status"`

	Anchor  Anchor  `json:"anchor"`
	Pattern Pattern `json:"pattern"`
	Window  *Window `json:"window,omitempty"`
	Policy  Policy  `json:"policy"`

	Timezone  string     `json:"timezone"`
	StartDate CivilDate  `json:"start_date"`
	EndDate   *CivilDate `json:"end_date,omitempty"`

	SkipDates DateList     `json:"skip_dates,omitempty"`
	Blackouts BlackoutList `json:"blackouts,omitempty"`

	// Run-state, mutated only by the occurrence scheduler.
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastJobRef string     `json:"last_job_ref,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location resolves the plan's IANA timezone, falling back to the
// platform default when the field is empty.
func (p *SchedulePlan) Location() (*time.Location, error) {
	tz := p.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, NewAppError(ErrCodeInvalidTimezone, "unknown IANA timezone "+tz, err).WithPlan(p.ID)
	}
	return loc, nil
}

// Occurrence is one concrete calendar instance a plan's pattern produced,
// bound to start/end instants by WindowResolver. Occurrences are
// ephemeral: generated, gated, then either materialized or dropped. Their
// only identity is (PlanID, Date), the idempotence key.
type Occurrence struct {
	PlanID   string    `json:"plan_id"`
	Date     CivilDate `json:"date"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Timezone string    `json:"timezone"`
	// AllDay is set when the plan has no time window and the occurrence
	// spans the full civil day.
	AllDay bool `json:"all_day,omitempty"`
}

// RunState is the pair of run-tracking fields the scheduler owns. It is
// written back to the plan row transactionally with materialization.
type RunState struct {
	LastRunAt  time.Time  `json:"last_run_at"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastJobRef string     `json:"last_job_ref,omitempty"`
}

// Job is a materialized service visit. The engine creates jobs in the
// pending state; assignment and completion belong to the platform.
type Job struct {
	ID       string    `json:"id"`
	PlanID   string    `json:"plan_id"`
	TenantID string    `json:"tenant_id"`
	Anchor   Anchor    `json:"anchor"`
	Date     CivilDate `json:"date"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	Timezone string    `json:"timezone"`
	AllDay   bool      `json:"all_day,omitempty"`
	Status   JobStatus `json:"status"`

	// Crew sizing and preferences copied from the plan's policy at
	// materialization time, so later plan edits do not rewrite history.
	MinCrewSize        *int     `json:"min_crew_size,omitempty"`
	MaxCrewSize        *int     `json:"max_crew_size,omitempty"`
	PreferredEmployees []string `json:"preferred_employees,omitempty"`
	AutoAssign         bool     `json:"auto_assign"`

	CreatedAt time.Time `json:"created_at"`
}

// GenerationResult is the outcome of the pure side of a pass: the
// occurrences eligible for materialization now, the candidate nextRunAt,
// and counters for observability.
type GenerationResult struct {
	Occurrences []Occurrence `json:"occurrences"`
	NextRunAt   *time.Time   `json:"next_run_at,omitempty"`

	// Counters over the pipeline stages.
	Expanded int `json:"expanded"` // dates the pattern produced in range
	Excluded int `json:"excluded"` // removed by skip dates / blackouts
	Deferred int `json:"deferred"` // windowed but not eligible this pass
}

// CommitSummary reports what a commit transaction actually wrote:
// the jobs inserted this pass and how many eligible occurrences already
// existed (lost races or reruns, absorbed by the idempotence key).
type CommitSummary struct {
	CreatedJobs []Job `json:"created_jobs"`
	Existing    int   `json:"existing"`
}

// PassRecord tracks one generation pass execution for operational
// visibility.
type PassRecord struct {
	ID           int64      `json:"id"`
	PlanID       string     `json:"plan_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       PassStatus `json:"status"`
	Expanded     int        `json:"expanded"`
	Materialized int        `json:"materialized"`
	Conflicts    int        `json:"conflicts"`
	Error        string     `json:"error,omitempty"`
}

// EventEnvelope is the standard wrapper for events the engine publishes
// (currently job.created announcements for the assignment worker).
type EventEnvelope struct {
	EventID   string    `json:"event_id"`   // "evt_..." unique ID for deduplication
	EventType string    `json:"event_type"` // dot-namespaced, e.g. "job.created"
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Payload   any       `json:"payload"`
}

// JobCreatedEvent is the payload of a job.created envelope. Consumers
// dedupe on JobID; delivery is at-least-once.
type JobCreatedEvent struct {
	JobID              string    `json:"job_id"`
	PlanID             string    `json:"plan_id"`
	TenantID           string    `json:"tenant_id"`
	ApartmentRef       string    `json:"apartment_ref"`
	Date               CivilDate `json:"date"`
	StartAt            time.Time `json:"start_at"`
	EndAt              time.Time `json:"end_at"`
	MinCrewSize        *int      `json:"min_crew_size,omitempty"`
	MaxCrewSize        *int      `json:"max_crew_size,omitempty"`
	PreferredEmployees []string  `json:"preferred_employees,omitempty"`
}
