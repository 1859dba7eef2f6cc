package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crewplan/internal/config"
	"crewplan/internal/types"
)

// ============================================================
// Fakes
// ============================================================

type fakePlanRunner struct {
	summary *types.CommitSummary
	result  *types.GenerationResult
	err     error

	runCalls     []string
	previewCalls []string
	lastNow      time.Time
}

func (f *fakePlanRunner) RunPlan(_ context.Context, planID string, now time.Time) (*types.CommitSummary, error) {
	f.runCalls = append(f.runCalls, planID)
	f.lastNow = now
	if f.err != nil {
		return nil, f.err
	}
	if f.summary != nil {
		return f.summary, nil
	}
	return &types.CommitSummary{}, nil
}

func (f *fakePlanRunner) Preview(_ context.Context, planID string, now time.Time) (*types.GenerationResult, error) {
	f.previewCalls = append(f.previewCalls, planID)
	f.lastNow = now
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &types.GenerationResult{}, nil
}

type fakePassLister struct {
	records   []types.PassRecord
	err       error
	lastLimit int
}

func (f *fakePassLister) ListPasses(_ context.Context, planID string, limit int) ([]types.PassRecord, error) {
	f.lastLimit = limit
	return f.records, f.err
}

type fakeProbe struct {
	name string
	err  error
}

func (p *fakeProbe) Name() string                  { return p.name }
func (p *fakeProbe) Check(_ context.Context) error { return p.err }

// ============================================================
// Helpers
// ============================================================

const testAuthToken = "ops-token-test"

func testConfig() *config.Config {
	return &config.Config{
		Environment: "local",
		Server: config.ServerConfig{
			Port:      "8080",
			AuthToken: types.SecretString(testAuthToken),
		},
	}
}

func newTestServer(t *testing.T, plans PlanRunner, passes PassLister, probes ...HealthProbe) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(testConfig(), plans, passes, logger)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	srv.Probes = probes
	srv.MountRoutes()
	return srv
}

func doRequest(srv *Server, method, path, body string, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAuthToken)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body: %v (%s)", err, rec.Body.String())
	}
	return resp.Error
}

// ============================================================
// Auth
// ============================================================

func TestAuth_MissingToken(t *testing.T) {
	srv := newTestServer(t, &fakePlanRunner{}, nil)

	rec := doRequest(srv, http.MethodPost, "/v1/plans/pln_1/generate", "", false)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != string(types.ErrCodeAuthTokenMissing) {
		t.Errorf("code = %s, want %s", detail.Code, types.ErrCodeAuthTokenMissing)
	}
}

func TestAuth_WrongToken(t *testing.T) {
	srv := newTestServer(t, &fakePlanRunner{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/plans/pln_1/generate", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != string(types.ErrCodeAuthTokenInvalid) {
		t.Errorf("code = %s, want %s", detail.Code, types.ErrCodeAuthTokenInvalid)
	}
}

func TestAuth_HealthIsPublic(t *testing.T) {
	srv := newTestServer(t, &fakePlanRunner{}, nil)

	rec := doRequest(srv, http.MethodGet, "/health", "", false)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// ============================================================
// Generate
// ============================================================

func TestGenerate_Success(t *testing.T) {
	runner := &fakePlanRunner{summary: &types.CommitSummary{
		CreatedJobs: []types.Job{{
			ID:     "job_1",
			PlanID: "pln_1",
			Date:   types.NewCivilDate(2024, time.January, 1),
		}},
		Existing: 1,
	}}
	srv := newTestServer(t, runner, nil)

	rec := doRequest(srv, http.MethodPost, "/v1/plans/pln_1/generate", "", true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(runner.runCalls) != 1 || runner.runCalls[0] != "pln_1" {
		t.Errorf("runCalls = %v, want [pln_1]", runner.runCalls)
	}

	var resp struct {
		Data generateResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Data.CreatedJobs) != 1 || resp.Data.Existing != 1 {
		t.Errorf("response = %+v, want 1 created and 1 existing", resp.Data)
	}
}

func TestGenerate_ReferenceTimeOverride(t *testing.T) {
	runner := &fakePlanRunner{}
	srv := newTestServer(t, runner, nil)

	body := `{"reference_time": "2024-01-01T06:00:00+01:00"}`
	rec := doRequest(srv, http.MethodPost, "/v1/plans/pln_1/generate", body, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	want := time.Date(2024, time.January, 1, 5, 0, 0, 0, time.UTC)
	if !runner.lastNow.Equal(want) {
		t.Errorf("reference time = %v, want %v", runner.lastNow, want)
	}
}

func TestGenerate_MalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakePlanRunner{}, nil)

	rec := doRequest(srv, http.MethodPost, "/v1/plans/pln_1/generate", `{"nope`, true)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGenerate_PlanNotFound(t *testing.T) {
	runner := &fakePlanRunner{err: types.NewAppError(types.ErrCodeNotFoundPlan, "schedule plan not found", nil)}
	srv := newTestServer(t, runner, nil)

	rec := doRequest(srv, http.MethodPost, "/v1/plans/pln_missing/generate", "", true)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != string(types.ErrCodeNotFoundPlan) {
		t.Errorf("code = %s, want %s", detail.Code, types.ErrCodeNotFoundPlan)
	}
}

func TestGenerate_ClockSkewMapsToConflict(t *testing.T) {
	runner := &fakePlanRunner{err: types.NewAppError(types.ErrCodeClockSkew, "reference time precedes last pass", nil)}
	srv := newTestServer(t, runner, nil)

	rec := doRequest(srv, http.MethodPost, "/v1/plans/pln_1/generate", "", true)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestGenerate_GenericErrorHidesDetails(t *testing.T) {
	runner := &fakePlanRunner{err: io.ErrUnexpectedEOF}
	srv := newTestServer(t, runner, nil)

	rec := doRequest(srv, http.MethodPost, "/v1/plans/pln_1/generate", "", true)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "unexpected EOF") {
		t.Error("internal error details leaked to the client")
	}
}

// ============================================================
// Preview
// ============================================================

func TestPreview_Success(t *testing.T) {
	next := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
	runner := &fakePlanRunner{result: &types.GenerationResult{
		Occurrences: []types.Occurrence{{PlanID: "pln_1"}},
		NextRunAt:   &next,
		Expanded:    3,
	}}
	srv := newTestServer(t, runner, nil)

	rec := doRequest(srv, http.MethodGet, "/v1/plans/pln_1/preview", "", true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(runner.previewCalls) != 1 {
		t.Errorf("previewCalls = %v, want one call", runner.previewCalls)
	}
	if len(runner.runCalls) != 0 {
		t.Error("preview must not trigger a committing pass")
	}
}

func TestPreview_AtParameter(t *testing.T) {
	runner := &fakePlanRunner{}
	srv := newTestServer(t, runner, nil)

	rec := doRequest(srv, http.MethodGet, "/v1/plans/pln_1/preview?at=2024-06-01T00:00:00Z", "", true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	want := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	if !runner.lastNow.Equal(want) {
		t.Errorf("reference time = %v, want %v", runner.lastNow, want)
	}
}

func TestPreview_InvalidAtParameter(t *testing.T) {
	srv := newTestServer(t, &fakePlanRunner{}, nil)

	rec := doRequest(srv, http.MethodGet, "/v1/plans/pln_1/preview?at=yesterday", "", true)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// ============================================================
// Pass history
// ============================================================

func TestListPasses_Success(t *testing.T) {
	lister := &fakePassLister{records: []types.PassRecord{
		{ID: 2, PlanID: "pln_1", Status: types.PassStatusSuccess},
		{ID: 1, PlanID: "pln_1", Status: types.PassStatusFailed},
	}}
	srv := newTestServer(t, &fakePlanRunner{}, lister)

	rec := doRequest(srv, http.MethodGet, "/v1/plans/pln_1/passes", "", true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if lister.lastLimit != defaultPassListLimit {
		t.Errorf("limit = %d, want default %d", lister.lastLimit, defaultPassListLimit)
	}

	var resp struct {
		Data []types.PassRecord `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("records = %d, want 2", len(resp.Data))
	}
}

func TestListPasses_LimitParameter(t *testing.T) {
	lister := &fakePassLister{}
	srv := newTestServer(t, &fakePlanRunner{}, lister)

	rec := doRequest(srv, http.MethodGet, "/v1/plans/pln_1/passes?limit=50", "", true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if lister.lastLimit != 50 {
		t.Errorf("limit = %d, want 50", lister.lastLimit)
	}
}

func TestListPasses_InvalidLimit(t *testing.T) {
	srv := newTestServer(t, &fakePlanRunner{}, &fakePassLister{})

	rec := doRequest(srv, http.MethodGet, "/v1/plans/pln_1/passes?limit=9000", "", true)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// ============================================================
// Health
// ============================================================

func TestHealth_AllProbesHealthy(t *testing.T) {
	srv := newTestServer(t, &fakePlanRunner{}, nil,
		&fakeProbe{name: "database"},
		&fakeProbe{name: "sqs"},
	)

	rec := doRequest(srv, http.MethodGet, "/health", "", false)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "healthy" || len(resp.Components) != 2 {
		t.Errorf("response = %+v, want 2 healthy components", resp)
	}
}

func TestHealth_FailingProbe(t *testing.T) {
	srv := newTestServer(t, &fakePlanRunner{}, nil,
		&fakeProbe{name: "database"},
		&fakeProbe{name: "sqs", err: io.ErrClosedPipe},
	)

	rec := doRequest(srv, http.MethodGet, "/health", "", false)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Components["sqs"].Status != "unhealthy" {
		t.Errorf("sqs component = %+v, want unhealthy", resp.Components["sqs"])
	}
}

// ============================================================
// Middleware
// ============================================================

func TestRequestID_EchoedOnResponse(t *testing.T) {
	srv := newTestServer(t, &fakePlanRunner{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "req-abc-123" {
		t.Errorf("X-Request-Id = %q, want propagated value", got)
	}
}

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	srv := newTestServer(t, &fakePlanRunner{}, nil)

	rec := doRequest(srv, http.MethodGet, "/health", "", false)

	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id should be generated when the client omits it")
	}
}

func TestRecoverer_PanicBecomes500(t *testing.T) {
	srv := newTestServer(t, &fakePlanRunner{}, nil)
	srv.Router().Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	rec := doRequest(srv, http.MethodGet, "/boom", "", false)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("code = %s, want %s", detail.Code, types.ErrCodeInternalUnexpected)
	}
}
