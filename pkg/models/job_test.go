package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_IsTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCanceled}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s must be terminal", s)
	}

	active := []JobStatus{JobStatusPending, JobStatusQueued, JobStatusExecuting}
	for _, s := range active {
		assert.False(t, s.IsTerminal(), "%s must not be terminal", s)
	}
}

func TestJob_TerminalFallsBackToStatus(t *testing.T) {
	// Portal omitted the derived booleans; the status enum still decides
	job := &Job{ID: "j", Status: JobStatusCanceled}
	assert.True(t, job.Terminal())

	job = &Job{ID: "j", Status: JobStatusExecuting}
	assert.False(t, job.Terminal())

	job = &Job{ID: "j", Status: JobStatusExecuting, IsCompleted: true}
	assert.True(t, job.Terminal())
}

func TestJobRequest_OptionalFieldsAbsentWhenUnset(t *testing.T) {
	req := JobRequest{
		Message:        "hello",
		IdempotencyKey: "k",
		Options:        RequestOptions{Token: "t", Model: "sonnet"},
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Presence of these keys toggles remote behavior, so unset means absent
	for _, key := range []string{"ttl", "callback"} {
		_, ok := decoded[key]
		assert.False(t, ok, "unexpected key %q", key)
	}

	options := decoded["options"].(map[string]any)
	for _, key := range []string{"systemPrompt", "maxTurns", "outputFormat", "tools", "allowedTools", "disallowedTools", "permissionMode", "allowDangerouslySkipPermissions"} {
		_, ok := options[key]
		assert.False(t, ok, "unexpected options key %q", key)
	}
}

func TestAgentResult_StructuredOutputPresenceSurvivesRoundTrip(t *testing.T) {
	var res AgentResult
	require.NoError(t, json.Unmarshal([]byte(`{"subtype":"success","structured_output":0,"total_cost_usd":0.01}`), &res))
	assert.NotNil(t, res.StructuredOutput)
	assert.Equal(t, "0", string(res.StructuredOutput))

	var bare AgentResult
	require.NoError(t, json.Unmarshal([]byte(`{"subtype":"success"}`), &bare))
	assert.Nil(t, bare.StructuredOutput)
}
