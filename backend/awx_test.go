package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAWXForTest(t *testing.T, handler http.HandlerFunc) *AWX {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAWX(orchestrator.HTTPBackendConfig{
		BaseURL: srv.URL,
		Token:   "test-token",
		Timeout: orchestrator.Duration(2 * time.Second),
	}, nil)
}

func TestAWXLaunchJobTemplate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	adapter := newAWXForTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"job": 981, "status": "pending"}`))
	})

	ack, err := adapter.Launch(context.Background(), map[string]any{
		"resourceId":   "42",
		"resourceType": "JobTemplate",
		"launch": map[string]any{
			"extra_vars": map[string]any{"env": "prod"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/v2/job_templates/42/launch/", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "981", ack.JobID)
	assert.JSONEq(t, `{"job": 981, "status": "pending"}`, string(ack.Raw))

	// only the launch sub-object goes over the wire
	extraVars, ok := gotBody["extra_vars"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "prod", extraVars["env"])
	assert.NotContains(t, gotBody, "resourceId")
}

func TestAWXLaunchWorkflowTemplate(t *testing.T) {
	var gotPath string
	adapter := newAWXForTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"workflow_job": 55}`))
	})

	ack, err := adapter.Launch(context.Background(), map[string]any{
		"resourceId":   "9",
		"resourceType": "WorkflowTemplate",
		"launch":       map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/workflow_job_templates/9/launch/", gotPath)
	assert.Equal(t, "55", ack.JobID)
}

func TestAWXLaunchRejectionDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	adapter := newAWXForTest(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"extra_vars": ["value missing"]}`))
	})

	_, err := adapter.Launch(context.Background(), map[string]any{
		"resourceId": "42",
		"launch":     map[string]any{},
	})
	require.Error(t, err)
	assert.False(t, orchestrator.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestAWXLaunchMissingResourceID(t *testing.T) {
	adapter := newAWXForTest(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := adapter.Launch(context.Background(), map[string]any{"launch": map[string]any{}})
	require.Error(t, err)
	assert.False(t, orchestrator.IsTransient(err))
}

func TestAWXStatus(t *testing.T) {
	var gotPath string
	adapter := newAWXForTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"id": 981, "status": "successful"}`))
	})

	status := adapter.Status(context.Background(), "981")
	assert.Equal(t, "successful", status)
	assert.Equal(t, "/api/v2/jobs/981/", gotPath)
}

func TestAWXStatusUnknownOnServerError(t *testing.T) {
	adapter := newAWXForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	assert.Equal(t, StatusUnknown, adapter.Status(context.Background(), "981"))
}

func TestAWXStatusUnknownOnGarbage(t *testing.T) {
	adapter := newAWXForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	assert.Equal(t, StatusUnknown, adapter.Status(context.Background(), "981"))
}

func TestAWXResultDetailAlwaysEmpty(t *testing.T) {
	adapter := newAWXForTest(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	detail, ok := adapter.ResultDetail(context.Background(), "981")
	assert.Empty(t, detail)
	assert.False(t, ok)
}
