package incubate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselworks/vesselctl/pkg/models"
)

func terminalJob() *models.Job {
	now := time.Now().UTC().Truncate(time.Second)
	finished := now.Add(30 * time.Second)
	return &models.Job{
		ID:          "job-42",
		Status:      models.JobStatusCompleted,
		IsCompleted: true,
		IsSuccess:   true,
		CreatedAt:   now,
		UpdatedAt:   finished,
		StartedAt:   &now,
		FinishedAt:  &finished,
	}
}

func TestFlatten_AlwaysIncludesIdentityAndTimestamps(t *testing.T) {
	job := terminalJob()
	flat := Flatten(job)

	assert.Equal(t, "job-42", flat.JobID)
	assert.Equal(t, models.JobStatusCompleted, flat.Status)
	assert.True(t, flat.IsSuccess)
	assert.False(t, flat.IsFailed)
	assert.Equal(t, job.CreatedAt, flat.CreatedAt)
	assert.Equal(t, job.UpdatedAt, flat.UpdatedAt)
	assert.Equal(t, job.StartedAt, flat.StartedAt)
	assert.Equal(t, job.FinishedAt, flat.FinishedAt)
}

func TestFlatten_NoOutput(t *testing.T) {
	flat := Flatten(terminalJob())

	assert.Nil(t, flat.Success)
	assert.Nil(t, flat.Text)
	assert.Nil(t, flat.RawOutput)
	assert.Nil(t, flat.StructuredOutput)
	assert.Empty(t, flat.ResultSubtype)
}

func TestFlatten_OutputWithoutResult(t *testing.T) {
	job := terminalJob()
	text := "all done"
	job.Output = &models.IncubateOutput{Success: true, Text: &text}

	flat := Flatten(job)

	require.NotNil(t, flat.Success)
	assert.True(t, *flat.Success)
	require.NotNil(t, flat.Text)
	assert.Equal(t, "all done", *flat.Text)
	assert.Same(t, job.Output, flat.RawOutput)
	assert.Nil(t, flat.TotalCostUSD)
	assert.Empty(t, flat.ResultSubtype)
}

func TestFlatten_ResultLiftsFields(t *testing.T) {
	job := terminalJob()
	job.Output = &models.IncubateOutput{
		Success: true,
		Result: &models.AgentResult{
			Subtype:      models.ResultSubtypeSuccess,
			Result:       "answer text",
			TotalCostUSD: 0.0421,
			Usage:        map[string]any{"input_tokens": float64(812), "output_tokens": float64(96)},
		},
	}

	flat := Flatten(job)

	assert.Equal(t, models.ResultSubtypeSuccess, flat.ResultSubtype)
	assert.Equal(t, "answer text", flat.ResultText)
	require.NotNil(t, flat.TotalCostUSD)
	assert.InDelta(t, 0.0421, *flat.TotalCostUSD, 1e-9)
	assert.Equal(t, float64(812), flat.Usage["input_tokens"])
	assert.Nil(t, flat.StructuredOutput)
}

func TestFlatten_StructuredOutputPresenceNotTruthiness(t *testing.T) {
	// Presence of the key gates inclusion, even for falsy values
	values := []string{`0`, `false`, `{}`, `""`, `null`, `{"name":"x"}`}

	for _, raw := range values {
		t.Run(raw, func(t *testing.T) {
			job := terminalJob()
			job.Output = &models.IncubateOutput{
				Success: true,
				Result: &models.AgentResult{
					Subtype:          models.ResultSubtypeSuccess,
					StructuredOutput: json.RawMessage(raw),
				},
			}

			flat := Flatten(job)
			require.NotNil(t, flat.StructuredOutput)
			assert.JSONEq(t, raw, string(flat.StructuredOutput))
		})
	}
}

func TestFlatten_TotalOverPresenceGrid(t *testing.T) {
	text := "partial"
	outputs := []*models.IncubateOutput{
		nil,
		{},
		{Success: false, Error: "agent crashed"},
		{Success: true, Text: &text},
		{Success: false, Result: &models.AgentResult{Subtype: models.ResultSubtypeMaxTurns}},
		{Success: false, Result: &models.AgentResult{Subtype: models.ResultSubtypeMaxBudgetUSD, TotalCostUSD: 10}},
		{Success: true, Result: &models.AgentResult{Subtype: models.ResultSubtypeSuccess, StructuredOutput: json.RawMessage(`0`)}},
		{Success: false, Result: &models.AgentResult{Subtype: models.ResultSubtypeMaxStructuredOutputRetries}},
		{Success: false, Result: &models.AgentResult{Subtype: models.ResultSubtypeDuringExecution}},
	}

	for i, out := range outputs {
		job := terminalJob()
		job.Output = out

		// Must never panic and must stay self-consistent
		flat := Flatten(job)
		assert.Equal(t, "job-42", flat.JobID, "case %d", i)

		if out == nil {
			assert.Nil(t, flat.RawOutput, "case %d", i)
			continue
		}
		assert.Same(t, out, flat.RawOutput, "case %d", i)

		hasStructured := out.Result != nil && out.Result.StructuredOutput != nil
		assert.Equal(t, hasStructured, flat.StructuredOutput != nil, "case %d", i)
	}
}

func TestFlatten_JobErrorLiftedAndOutputErrorWins(t *testing.T) {
	job := terminalJob()
	job.Status = models.JobStatusFailed
	job.IsSuccess = false
	job.IsFailed = true
	job.Error = &models.JobError{Message: "scheduler gave up", Name: "SchedulerError"}

	flat := Flatten(job)
	assert.Equal(t, "scheduler gave up", flat.Error)

	job.Output = &models.IncubateOutput{Success: false, Error: "execution blew up"}
	flat = Flatten(job)
	assert.Equal(t, "execution blew up", flat.Error)
}
