package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAWXWrapsFormData(t *testing.T) {
	form := map[string]any{"env": "prod", "replicas": 3}

	payload := ToAWX(form, "JobTemplate", "42")

	assert.Equal(t, "42", payload["resourceId"])
	assert.Equal(t, "JobTemplate", payload["resourceType"])

	launch, ok := payload["launch"].(map[string]any)
	require.True(t, ok, "expected launch sub-object")
	extraVars, ok := launch["extra_vars"].(map[string]any)
	require.True(t, ok, "expected extra_vars map")
	assert.Equal(t, "prod", extraVars["env"])
	assert.Equal(t, 3, extraVars["replicas"])
}

func TestToAWXIdempotent(t *testing.T) {
	form := map[string]any{"env": "prod"}
	once := ToAWX(form, "JobTemplate", "42")
	twice := ToAWX(once, "JobTemplate", "42")
	assert.Equal(t, once, twice)

	// passthrough must return the same map, not a rewrapped copy
	thrice := ToAWX(twice, "WorkflowTemplate", "99")
	assert.Equal(t, "42", thrice["resourceId"])
}

func TestToAWXEmptyForm(t *testing.T) {
	payload := ToAWX(nil, "JobTemplate", "7")
	launch := payload["launch"].(map[string]any)
	assert.Empty(t, launch["extra_vars"])
}

func TestToOOWrapsFormData(t *testing.T) {
	form := map[string]any{"host": "db01"}

	payload := ToOO(form, "b2f3a1")

	assert.Equal(t, "b2f3a1", payload["flowUuid"])
	inputs, ok := payload["inputs"].(map[string]any)
	require.True(t, ok, "expected inputs map")
	assert.Equal(t, "db01", inputs["host"])
}

func TestToOOIdempotent(t *testing.T) {
	form := map[string]any{"host": "db01"}
	once := ToOO(form, "b2f3a1")
	twice := ToOO(once, "other-flow")
	assert.Equal(t, once, twice)
}

func TestEnvelopeDetectionRequiresBothKeys(t *testing.T) {
	// resourceId alone is user data, not an envelope
	form := map[string]any{"resourceId": "custom-value"}
	payload := ToAWX(form, "JobTemplate", "42")
	launch, ok := payload["launch"].(map[string]any)
	require.True(t, ok)
	extraVars := launch["extra_vars"].(map[string]any)
	assert.Equal(t, "custom-value", extraVars["resourceId"])

	oo := map[string]any{"flowUuid": "abc"}
	wrapped := ToOO(oo, "def")
	assert.Equal(t, "def", wrapped["flowUuid"])
}
