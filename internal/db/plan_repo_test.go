package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crewplan/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

func civilUTC(d types.CivilDate) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// planScanFn produces a scanFn that fills the planColumns destinations
// from the given fixture.
func planScanFn(plan *types.SchedulePlan) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = plan.ID
		*dest[1].(*string) = plan.TenantID
		*dest[2].(*string) = plan.Code
		*dest[3].(*types.PlanStatus) = plan.Status
		*dest[4].(*types.Anchor) = plan.Anchor
		*dest[5].(*types.Pattern) = plan.Pattern
		*dest[6].(**types.Window) = plan.Window
		*dest[7].(*types.Policy) = plan.Policy
		*dest[8].(*string) = plan.Timezone
		*dest[9].(*time.Time) = civilUTC(plan.StartDate)
		if plan.EndDate != nil {
			ed := civilUTC(*plan.EndDate)
			*dest[10].(**time.Time) = &ed
		}
		*dest[11].(*types.DateList) = plan.SkipDates
		*dest[12].(*types.BlackoutList) = plan.Blackouts
		*dest[13].(**time.Time) = plan.LastRunAt
		*dest[14].(**time.Time) = plan.NextRunAt
		if plan.LastJobRef != "" {
			ref := plan.LastJobRef
			*dest[15].(**string) = &ref
		}
		*dest[16].(*time.Time) = plan.CreatedAt
		*dest[17].(*time.Time) = plan.UpdatedAt
		return nil
	}
}

func planFixture() *types.SchedulePlan {
	end := types.CivilDate{Year: 2025, Month: time.June, Day: 30}
	return &types.SchedulePlan{
		ID:       "pln_1",
		TenantID: "tnt_1",
		Code:     "CLN-W-01",
		Status:   types.PlanStatusActive,
		Anchor:   types.Anchor{ApartmentRef: "apt_9"},
		Pattern: types.Pattern{
			Type:   types.PatternWeekly,
			Weekly: &types.WeeklyPattern{Every: 1, DaysOfWeek: []int{1, 4}},
		},
		Window:    &types.Window{StartTime: "10:00", EndTime: "12:00"},
		Timezone:  "Europe/Istanbul",
		StartDate: types.CivilDate{Year: 2024, Month: time.January, Day: 1},
		EndDate:   &end,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

// --- PlanRepository Tests ---

func TestPlanRepository_GetPlan_Success(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)
	fixture := planFixture()

	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: planScanFn(fixture)})

	plan, err := repo.GetPlan(context.Background(), "pln_1")
	require.NoError(t, err)
	assert.Equal(t, "pln_1", plan.ID)
	assert.Equal(t, types.PlanStatusActive, plan.Status)
	assert.Equal(t, types.PatternWeekly, plan.Pattern.Type)
	assert.Equal(t, "2024-01-01", plan.StartDate.String())
	require.NotNil(t, plan.EndDate)
	assert.Equal(t, "2025-06-30", plan.EndDate.String())
	require.NotNil(t, plan.Window)
	assert.Equal(t, "10:00", plan.Window.StartTime)
}

func TestPlanRepository_GetPlan_NotFound(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)

	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetPlan(context.Background(), "pln_missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPlan, appErr.Code)
	assert.Equal(t, "pln_missing", appErr.Details["plan_id"])
}

func TestPlanRepository_GetPlan_DBError(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)

	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	_, err := repo.GetPlan(context.Background(), "pln_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestPlanRepository_HighWaterDate_Present(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)

	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			s := "2024-05-20"
			*dest[0].(**string) = &s
			return nil
		}})

	hw, err := repo.HighWaterDate(context.Background(), "pln_1")
	require.NoError(t, err)
	require.NotNil(t, hw)
	assert.Equal(t, "2024-05-20", hw.String())
}

func TestPlanRepository_HighWaterDate_NoJobs(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)

	// MAX over zero rows yields SQL NULL, not ErrNoRows.
	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(**string) = nil
			return nil
		}})

	hw, err := repo.HighWaterDate(context.Background(), "pln_1")
	require.NoError(t, err)
	assert.Nil(t, hw)
}

func TestPlanRepository_UpdateRunState_Success(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)

	next := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	dbMock.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.UpdateRunState(context.Background(), "pln_1", types.RunState{
		LastRunAt:  time.Now().UTC(),
		NextRunAt:  &next,
		LastJobRef: "job_abc",
	})
	require.NoError(t, err)
	dbMock.AssertExpectations(t)
}

func TestPlanRepository_UpdateRunState_PlanGone(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)

	dbMock.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.UpdateRunState(context.Background(), "pln_1", types.RunState{LastRunAt: time.Now().UTC()})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPlan, appErr.Code)
}

// --- ListDue ---

// planMockRows implements pgx.Rows over plan fixtures.
type planMockRows struct {
	plans  []*types.SchedulePlan
	idx    int
	closed bool
	errVal error
}

func newPlanMockRows(plans ...*types.SchedulePlan) *planMockRows {
	return &planMockRows{plans: plans, idx: -1}
}

func (r *planMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.plans)
}

func (r *planMockRows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.plans) {
		return errors.New("no current row")
	}
	return planScanFn(r.plans[r.idx])(dest...)
}

func (r *planMockRows) Close()                                       { r.closed = true }
func (r *planMockRows) Err() error                                   { return r.errVal }
func (r *planMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *planMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *planMockRows) RawValues() [][]byte                          { return nil }
func (r *planMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *planMockRows) Conn() *pgx.Conn                              { return nil }

func TestPlanRepository_ListDue_Success(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)

	a := planFixture()
	b := planFixture()
	b.ID = "pln_2"
	dbMock.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newPlanMockRows(a, b), nil)

	plans, err := repo.ListDue(context.Background(), time.Now().UTC(), 0)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "pln_1", plans[0].ID)
	assert.Equal(t, "pln_2", plans[1].ID)
}

func TestPlanRepository_ListDue_QueryError(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPlanRepository(dbMock)

	dbMock.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.ListDue(context.Background(), time.Now().UTC(), 10)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
