package models

import (
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle state of a vessel job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusExecuting JobStatus = "EXECUTING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCanceled  JobStatus = "CANCELED"
)

// IsTerminal returns true once the job can no longer change state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCanceled
}

// Job represents one remote agent execution as stored by the portal.
// The portal owns the canonical record; this client only observes it.
type Job struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	IsCompleted bool            `json:"isCompleted"`
	IsSuccess   bool            `json:"isSuccess"`
	IsFailed    bool            `json:"isFailed"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
	Output      *IncubateOutput `json:"output,omitempty"`
	Error       *JobError       `json:"error,omitempty"`
}

// Terminal reports whether the record is in a terminal state. It prefers
// the remote isCompleted flag but falls back to the status enum so a
// portal that omits derived booleans still terminates poll loops.
func (j *Job) Terminal() bool {
	return j.IsCompleted || j.Status.IsTerminal()
}

// JobError carries the failure recorded on a job
type JobError struct {
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
}

// IncubateOutput is the variant result payload attached to a terminal job
type IncubateOutput struct {
	Success bool         `json:"success"`
	Text    *string      `json:"text,omitempty"`
	Result  *AgentResult `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Agent result subtypes reported by the execution side
const (
	ResultSubtypeSuccess                    = "success"
	ResultSubtypeMaxTurns                   = "error_max_turns"
	ResultSubtypeDuringExecution            = "error_during_execution"
	ResultSubtypeMaxBudgetUSD               = "error_max_budget_usd"
	ResultSubtypeMaxStructuredOutputRetries = "error_max_structured_output_retries"
)

// AgentResult is the richer agent-produced payload inside IncubateOutput.
// StructuredOutput stays a raw message: presence (non-nil), not
// truthiness, decides whether a schema-validated result exists.
type AgentResult struct {
	Subtype          string          `json:"subtype"`
	Result           string          `json:"result,omitempty"`
	StructuredOutput json.RawMessage `json:"structured_output,omitempty"`
	TotalCostUSD     float64         `json:"total_cost_usd"`
	Usage            map[string]any  `json:"usage,omitempty"`
}

// JobRequest is the canonical, validated submission payload for /incubate
type JobRequest struct {
	Message        string         `json:"message"`
	IdempotencyKey string         `json:"idempotencyKey"`
	Options        RequestOptions `json:"options"`
	TTL            int            `json:"ttl,omitempty"`
	Callback       *Callback      `json:"callback,omitempty"`
}

// RequestOptions toggles remote behavior; optional keys must be absent
// (not null or empty) when unset
type RequestOptions struct {
	Token                           string   `json:"token"`
	Model                           string   `json:"model"`
	SystemPrompt                    string   `json:"systemPrompt,omitempty"`
	MaxTurns                        int      `json:"maxTurns,omitempty"`
	OutputFormat                    *Format  `json:"outputFormat,omitempty"`
	Tools                           []string `json:"tools,omitempty"`
	AllowedTools                    []string `json:"allowedTools,omitempty"`
	DisallowedTools                 []string `json:"disallowedTools,omitempty"`
	PermissionMode                  string   `json:"permissionMode,omitempty"`
	AllowDangerouslySkipPermissions bool     `json:"allowDangerouslySkipPermissions,omitempty"`
}

// Format requests schema-validated structured output
type Format struct {
	Type   string         `json:"type"`
	Schema map[string]any `json:"schema"`
}

// Callback asks the remote side to deliver the result to a URL,
// optionally HMAC-signed with the secret
type Callback struct {
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"`
}

// SubmitResponse is the synchronous acceptance from /incubate
type SubmitResponse struct {
	VesselID       string     `json:"vesselId"`
	IdempotencyKey string     `json:"idempotencyKey"`
	Status         JobStatus  `json:"status"`
	ScheduledFor   *time.Time `json:"scheduledFor,omitempty"`
}

// Project is a portal project record
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CancelResponse acknowledges a cancel request
type CancelResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
}
