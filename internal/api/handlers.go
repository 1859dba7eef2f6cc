package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"crewplan/internal/types"
)

// generateRequest is the optional body for POST /v1/plans/{planID}/generate.
type generateRequest struct {
	// ReferenceTime overrides the pass reference instant. Defaults to
	// the current time. Passes never run with a reference time earlier
	// than the plan's last committed pass.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// generateResponse reports what the pass committed.
type generateResponse struct {
	PlanID      string      `json:"plan_id"`
	CreatedJobs []types.Job `json:"created_jobs"`
	Existing    int         `json:"existing"`
}

// HandleGenerate triggers a committing generation pass for one plan.
//
// POST /v1/plans/{planID}/generate
func (s *Server) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")

	var req generateRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}

	now := time.Now().UTC()
	if req.ReferenceTime != nil {
		now = req.ReferenceTime.UTC()
	}

	summary, err := s.Plans.RunPlan(r.Context(), planID, now)
	if err != nil {
		Error(w, r, err)
		return
	}

	created := summary.CreatedJobs
	if created == nil {
		created = []types.Job{}
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: generateResponse{
		PlanID:      planID,
		CreatedJobs: created,
		Existing:    summary.Existing,
	}})
}

// HandlePreview computes a pass without committing, for operators
// checking what a plan would generate. The optional "at" query parameter
// (RFC 3339) overrides the reference time.
//
// GET /v1/plans/{planID}/preview?at=2024-01-01T00:00:00Z
func (s *Server) HandlePreview(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")

	now := time.Now().UTC()
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			Error(w, r, types.NewAppError(
				types.ErrCodeInvalidRequest,
				"query parameter 'at' must be an RFC 3339 timestamp",
				err,
			))
			return
		}
		now = parsed.UTC()
	}

	result, err := s.Plans.Preview(r.Context(), planID, now)
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}

// defaultPassListLimit bounds GET /passes when no limit is given.
const defaultPassListLimit = 20

// HandleListPasses returns the plan's pass history, newest first.
//
// GET /v1/plans/{planID}/passes?limit=50
func (s *Server) HandleListPasses(w http.ResponseWriter, r *http.Request) {
	if s.Passes == nil {
		Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"pass history is not configured",
			nil,
		))
		return
	}

	planID := chi.URLParam(r, "planID")

	limit := defaultPassListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			Error(w, r, types.NewAppError(
				types.ErrCodeInvalidRequest,
				"query parameter 'limit' must be an integer between 1 and 500",
				err,
			))
			return
		}
		limit = parsed
	}

	records, err := s.Passes.ListPasses(r.Context(), planID, limit)
	if err != nil {
		Error(w, r, err)
		return
	}
	if records == nil {
		records = []types.PassRecord{}
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: records})
}
