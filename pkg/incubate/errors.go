package incubate

import (
	"fmt"
	"time"
)

// ValidationError reports a required field missing at the builder stage.
// Surfaced immediately, never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// SubmissionError reports a 2xx response from the execution endpoint
// that carried an embedded error or message field
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Message)
}

// TimeoutError reports that the poller exceeded its deadline without
// observing a terminal state. The remote job may still be running.
type TimeoutError struct {
	JobID   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not complete within %s", e.JobID, e.Timeout)
}
