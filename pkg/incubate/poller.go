package incubate

import (
	"context"
	"fmt"
	"time"

	"github.com/vesselworks/vesselctl/pkg/models"
)

// Poll defaults. Elapsed time is measured from the moment polling
// begins, not from job submission.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 600 * time.Second
)

// JobSource fetches the current job record. Satisfied by portal.Client.
type JobSource interface {
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

// Clock abstracts wall-clock access so the poll cadence is testable
// without real delays
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// PollObserver receives poll-loop events; used for metrics and logging
type PollObserver interface {
	PollTick(jobID string, status models.JobStatus)
	PollTimeout(jobID string)
}

// Poller repeatedly fetches a job until it reaches a terminal state or
// the deadline elapses. Each fetch is a fresh request; the loop never
// retries failures, it only rechecks status. The timeout stops the
// local loop only; it does not cancel the remote job.
type Poller struct {
	Source   JobSource
	Interval time.Duration
	Timeout  time.Duration
	Clock    Clock
	Observer PollObserver
}

// NewPoller creates a poller with default cadence against a job source
func NewPoller(source JobSource) *Poller {
	return &Poller{
		Source:   source,
		Interval: DefaultPollInterval,
		Timeout:  DefaultPollTimeout,
		Clock:    realClock{},
	}
}

// Wait polls until the job is terminal, the timeout elapses, or ctx is
// canceled. The first fetch happens immediately; a terminal record is
// returned the instant it is observed, with no trailing interval.
func (p *Poller) Wait(ctx context.Context, jobID string) (*models.Job, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	clock := p.Clock
	if clock == nil {
		clock = realClock{}
	}

	deadline := clock.Now().Add(timeout)

	for {
		job, err := p.Source.GetJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("poll job %s: %w", jobID, err)
		}

		if p.Observer != nil {
			p.Observer.PollTick(jobID, job.Status)
		}

		if job.Terminal() {
			return job, nil
		}

		if !clock.Now().Before(deadline) {
			if p.Observer != nil {
				p.Observer.PollTimeout(jobID)
			}
			return nil, &TimeoutError{JobID: jobID, Timeout: timeout}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("poll job %s: %w", jobID, ctx.Err())
		case <-clock.After(interval):
		}
	}
}
