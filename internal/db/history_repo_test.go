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

func TestPassHistoryRepository_StartPass_Success(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPassHistoryRepository(dbMock)

	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 42
			return nil
		}})

	id, err := repo.StartPass(context.Background(), "pln_1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestPassHistoryRepository_StartPass_DBError(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPassHistoryRepository(dbMock)

	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("relation does not exist")})

	_, err := repo.StartPass(context.Background(), "pln_1", time.Now().UTC())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestPassHistoryRepository_FinishPass_Success(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPassHistoryRepository(dbMock)

	dbMock.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.FinishPass(context.Background(), 42, &types.PassRecord{
		PlanID:       "pln_1",
		Status:       types.PassStatusSuccess,
		Expanded:     8,
		Materialized: 2,
		Conflicts:    1,
	})
	require.NoError(t, err)
	dbMock.AssertExpectations(t)
}

func TestPassHistoryRepository_FinishPass_RecordGone(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPassHistoryRepository(dbMock)

	dbMock.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.FinishPass(context.Background(), 42, &types.PassRecord{
		PlanID: "pln_1",
		Status: types.PassStatusFailed,
		Error:  "boom",
	})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalUnexpected, appErr.Code)
}

// passMockRows implements pgx.Rows over pass records.
type passMockRows struct {
	recs   []types.PassRecord
	idx    int
	closed bool
}

func (r *passMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.recs)
}

func (r *passMockRows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.recs) {
		return errors.New("no current row")
	}
	rec := r.recs[r.idx]
	*dest[0].(*int64) = rec.ID
	*dest[1].(*string) = rec.PlanID
	*dest[2].(*time.Time) = rec.StartedAt
	*dest[3].(**time.Time) = rec.FinishedAt
	*dest[4].(*types.PassStatus) = rec.Status
	*dest[5].(*int) = rec.Expanded
	*dest[6].(*int) = rec.Materialized
	*dest[7].(*int) = rec.Conflicts
	*dest[8].(*string) = rec.Error
	return nil
}

func (r *passMockRows) Close()                                       { r.closed = true }
func (r *passMockRows) Err() error                                   { return nil }
func (r *passMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *passMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *passMockRows) RawValues() [][]byte                          { return nil }
func (r *passMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *passMockRows) Conn() *pgx.Conn                              { return nil }

func TestPassHistoryRepository_ListPasses_Success(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewPassHistoryRepository(dbMock)

	now := time.Now().UTC()
	rows := &passMockRows{idx: -1, recs: []types.PassRecord{
		{ID: 2, PlanID: "pln_1", StartedAt: now, Status: types.PassStatusSuccess, Materialized: 3},
		{ID: 1, PlanID: "pln_1", StartedAt: now.Add(-time.Hour), Status: types.PassStatusFailed, Error: "boom"},
	}}
	dbMock.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	recs, err := repo.ListPasses(context.Background(), "pln_1", 20)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].ID)
	assert.Equal(t, types.PassStatusFailed, recs[1].Status)
}
