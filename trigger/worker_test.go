package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-orchestrator"
	"github.com/goliatone/go-orchestrator/engine"
	"github.com/goliatone/go-orchestrator/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerStartRequiresEngine(t *testing.T) {
	w := NewWorker(nil, time.Second, nil)
	require.Error(t, w.Start(context.Background()))
}

func TestWorkerTicksReconcile(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	rec := &orchestrator.JobExecution{
		ID:               "exec-1",
		RequestID:        "req-1",
		Target:           orchestrator.TargetAWX,
		ResourceType:     "JobTemplate",
		ResourceID:       "42",
		ExecutionPayload: []byte(`{}`),
		Status:           orchestrator.StatusRunning,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, st.Create(ctx, rec))

	// no adapter registered: the reconcile pass fails the orphan record
	eng := engine.New(st)
	w := NewWorker(eng, 100*time.Millisecond, nil)
	require.NoError(t, w.Start(ctx))
	defer w.Stop(ctx)

	assert.Eventually(t, func() bool {
		stored, err := st.Get(ctx, "exec-1")
		return err == nil && stored.Status == orchestrator.StatusFailed
	}, 3*time.Second, 20*time.Millisecond)
	assert.NotNil(t, w.Handle())
}
