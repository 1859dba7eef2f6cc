package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"crewplan/internal/types"
)

// PlatformClientConfig holds the configuration for creating a
// PlatformClient.
type PlatformClientConfig struct {
	BaseURL string
	APIKey  types.SecretString
	Logger  *slog.Logger
}

// platformJobRequest is the body POSTed to the platform's internal jobs
// endpoint. The plan ID and service date form the platform-side
// idempotence key, mirroring the engine's own jobs table.
type platformJobRequest struct {
	PlanID             string          `json:"plan_id"`
	TenantID           string          `json:"tenant_id"`
	Anchor             types.Anchor    `json:"anchor"`
	ServiceDate        types.CivilDate `json:"service_date"`
	StartAt            time.Time       `json:"start_at"`
	EndAt              time.Time       `json:"end_at"`
	Timezone           string          `json:"timezone"`
	AllDay             bool            `json:"all_day,omitempty"`
	MinCrewSize        *int            `json:"min_crew_size,omitempty"`
	MaxCrewSize        *int            `json:"max_crew_size,omitempty"`
	PreferredEmployees []string        `json:"preferred_employees,omitempty"`
	AutoAssign         bool            `json:"auto_assign"`
}

// platformJobResponse is the platform's reply to a job creation.
type platformJobResponse struct {
	JobID string `json:"job_id"`
}

// platformHighWaterResponse carries the furthest materialized service
// date the platform knows about.
type platformHighWaterResponse struct {
	Date *types.CivilDate `json:"date"`
}

// PlatformClient materializes jobs against the admin platform's internal
// API instead of the engine's own database. Used in deployments where
// the platform owns the jobs table. The platform returns 201 for a new
// job and 409 when the (plan, date) pair already exists; both are
// success outcomes here.
type PlatformClient struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
}

// NewPlatformClient creates a PlatformClient. The httpClient timeout
// should cover the platform's worst-case latency (a few seconds).
func NewPlatformClient(httpClient *http.Client, cfg PlatformClientConfig) *PlatformClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := NewBaseClient(
		httpClient,
		"platform",
		DefaultRetryPolicy(),
		"CrewPlanEngine/1.0",
	)
	return &PlatformClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// NewPlatformClientWithBase creates a PlatformClient on a pre-configured
// BaseClient. Useful in tests to disable retries.
func NewPlatformClientWithBase(base *BaseClient, cfg PlatformClientConfig) *PlatformClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PlatformClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// Materialize submits one occurrence as a job. Outcome semantics match
// the database materializer: a 409 means another pass (or the platform
// itself) already holds a job for this plan and date.
func (c *PlatformClient) Materialize(ctx context.Context, plan *types.SchedulePlan, occ types.Occurrence) (*types.Job, types.MaterializeOutcome, error) {
	reqBody := platformJobRequest{
		PlanID:             plan.ID,
		TenantID:           plan.TenantID,
		Anchor:             plan.Anchor,
		ServiceDate:        occ.Date,
		StartAt:            occ.Start,
		EndAt:              occ.End,
		Timezone:           occ.Timezone,
		AllDay:             occ.AllDay,
		MinCrewSize:        plan.Policy.MinCrewSize,
		MaxCrewSize:        plan.Policy.MaxCrewSize,
		PreferredEmployees: plan.Policy.PreferredEmployees,
		AutoAssign:         plan.Policy.AutoAssign,
	}

	var respBody platformJobResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/internal/v1/jobs", reqBody, &respBody)
	if err != nil {
		return nil, "", err
	}

	switch status {
	case http.StatusCreated:
		job := &types.Job{
			ID:                 respBody.JobID,
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
		return job, types.MaterializeCreated, nil
	case http.StatusConflict:
		return nil, types.MaterializeAlreadyExists, nil
	default:
		return nil, "", types.NewAppError(
			types.ErrCodeUpstreamPlatform,
			fmt.Sprintf("unexpected platform status %d creating job", status),
			nil,
		).WithPlan(plan.ID).WithDate(occ.Date)
	}
}

// HighWaterDate asks the platform for the furthest service date it has
// materialized for the plan. A 404 means the plan has no jobs yet.
func (c *PlatformClient) HighWaterDate(ctx context.Context, planID string) (*types.CivilDate, error) {
	var respBody platformHighWaterResponse
	status, err := c.doJSON(ctx, http.MethodGet, "/internal/v1/plans/"+planID+"/high-water", nil, &respBody)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		return respBody.Date, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, types.NewAppError(
			types.ErrCodeUpstreamPlatform,
			fmt.Sprintf("unexpected platform status %d reading high-water date", status),
			nil,
		).WithPlan(planID)
	}
}

// doJSON performs one authenticated JSON round trip and decodes a 2xx
// body into out. Non-2xx statuses besides those the callers handle are
// returned with the body discarded.
func (c *PlatformClient) doJSON(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal platform request", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build platform request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, types.NewAppError(
				types.ErrCodeUpstreamPlatform,
				"failed to decode platform response",
				err,
			)
		}
	}
	return resp.StatusCode, nil
}
