package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLite {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLite(db, "")
}

func TestSQLiteRoundTrip(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := &orchestrator.JobExecution{
		ID:                "exec-1",
		RequestID:         "req-1",
		Target:            orchestrator.TargetOO,
		ResourceID:        "b2f3a1",
		ExecutionPayload:  []byte(`{"flowUuid":"b2f3a1","inputs":{}}`),
		ExecutionResponse: []byte(`"200700123"`),
		Status:            orchestrator.StatusRunning,
		BackendJobID:      "200700123",
		BackendStatusRaw:  "RUNNING",
		LaunchAttempts:    1,
		PollingAttempts:   3,
		LastPolledAt:      now.Add(time.Minute),
		CreatedAt:         now,
		SentAt:            now.Add(time.Second),
	}
	require.NoError(t, st.Create(ctx, rec))

	got, err := st.Get(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.TargetOO, got.Target)
	assert.Equal(t, orchestrator.StatusRunning, got.Status)
	assert.Equal(t, "200700123", got.BackendJobID)
	assert.Equal(t, "RUNNING", got.BackendStatusRaw)
	assert.Equal(t, 3, got.PollingAttempts)
	assert.JSONEq(t, `{"flowUuid":"b2f3a1","inputs":{}}`, string(got.ExecutionPayload))
	assert.True(t, got.LastPolledAt.Equal(now.Add(time.Minute)))
	assert.True(t, got.CreatedAt.Equal(now))
	assert.True(t, got.CompletedAt.IsZero())
	assert.Equal(t, 1, got.Version)

	byReq, err := st.GetByRequestID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", byReq.ID)
}

func TestSQLiteNotFound(t *testing.T) {
	st := newSQLiteStore(t)
	_, err := st.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetByRequestID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteDuplicateRequest(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, newExecution("exec-1", "req-1", orchestrator.StatusPending, time.Now().UTC())))

	err := st.Create(ctx, newExecution("exec-2", "req-1", orchestrator.StatusPending, time.Now().UTC()))
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestSQLiteUpdateVersioning(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	rec := newExecution("exec-1", "req-1", orchestrator.StatusPending, time.Now().UTC())
	require.NoError(t, st.Create(ctx, rec))

	rec.Status = orchestrator.StatusRunning
	rec.BackendJobID = "981"
	require.NoError(t, st.Update(ctx, rec, 1))
	assert.Equal(t, 2, rec.Version)

	stale := rec.Clone()
	stale.Status = orchestrator.StatusFailed
	assert.ErrorIs(t, st.Update(ctx, stale, 1), ErrVersionConflict)

	got, err := st.Get(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusRunning, got.Status)
	assert.Equal(t, "981", got.BackendJobID)
	assert.Equal(t, 2, got.Version)
}

func TestSQLiteUpdateMissing(t *testing.T) {
	st := newSQLiteStore(t)
	rec := newExecution("ghost", "req-1", orchestrator.StatusPending, time.Now().UTC())
	assert.ErrorIs(t, st.Update(context.Background(), rec, 1), ErrNotFound)
}

func TestSQLiteListDue(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.Create(ctx, newExecution("exec-2", "req-2", orchestrator.StatusRunning, base.Add(time.Minute))))
	require.NoError(t, st.Create(ctx, newExecution("exec-1", "req-1", orchestrator.StatusRetryPending, base)))
	require.NoError(t, st.Create(ctx, newExecution("exec-3", "req-3", orchestrator.StatusSuccess, base.Add(2*time.Minute))))

	due, err := st.ListDue(ctx)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "exec-1", due[0].ID)
	assert.Equal(t, "exec-2", due[1].ID)
}

func TestSQLiteListPagingAndFilters(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	statuses := []orchestrator.Status{orchestrator.StatusPending, orchestrator.StatusRunning, orchestrator.StatusFailed}
	for i, status := range statuses {
		id := []string{"exec-1", "exec-2", "exec-3"}[i]
		rec := newExecution(id, "req-"+id, status, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, st.Create(ctx, rec))
	}

	page1, total, err := st.List(ctx, ListOptions{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page1, 2)
	assert.Equal(t, "exec-3", page1[0].ID)

	byStatus, total, err := st.List(ctx, ListOptions{Status: orchestrator.StatusRunning})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "exec-2", byStatus[0].ID)

	byReq, total, err := st.List(ctx, ListOptions{RequestID: "req-exec-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, byReq, 1)
}
