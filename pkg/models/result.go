package models

import (
	"encoding/json"
	"time"
)

// FlatResult is the consumer-facing record produced from a terminal Job.
// Every result variant flattens into this one shape: pointer fields are
// present only when the corresponding nested value existed.
type FlatResult struct {
	JobID      string     `json:"jobId"`
	Status     JobStatus  `json:"status"`
	IsSuccess  bool       `json:"isSuccess"`
	IsFailed   bool       `json:"isFailed"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// Lifted from output when present
	Success *bool   `json:"success,omitempty"`
	Text    *string `json:"text,omitempty"`
	Error   string  `json:"error,omitempty"`

	// Lifted from output.result when present
	ResultSubtype string         `json:"resultSubtype,omitempty"`
	ResultText    string         `json:"resultText,omitempty"`
	TotalCostUSD  *float64       `json:"totalCostUsd,omitempty"`
	Usage         map[string]any `json:"usage,omitempty"`

	// Present iff output.result.structured_output carried a value,
	// regardless of that value's truthiness
	StructuredOutput json.RawMessage `json:"structuredOutput,omitempty"`

	// Full original output for advanced consumers
	RawOutput *IncubateOutput `json:"rawOutput,omitempty"`
}
