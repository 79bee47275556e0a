package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/vesselworks/vesselctl/pkg/auth"
	"github.com/vesselworks/vesselctl/pkg/incubate"
	"github.com/vesselworks/vesselctl/pkg/logging"
	"github.com/vesselworks/vesselctl/pkg/metrics"
	"github.com/vesselworks/vesselctl/pkg/models"
	"github.com/vesselworks/vesselctl/pkg/portal"
)

// ItemError tags a failure with the index of the item that produced it,
// so partial batch results stay attributable
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// ItemResult is the per-item outcome of a batch run. Exactly one of
// Err or the success fields is meaningful.
type ItemResult struct {
	Index      int                    `json:"index"`
	Submission *models.SubmitResponse `json:"submission,omitempty"`
	Result     *models.FlatResult     `json:"result,omitempty"`
	Err        error                  `json:"-"`
	Error      string                 `json:"error,omitempty"`
}

// Config holds the per-run settings shared by every item
type Config struct {
	UserID            string
	ProjectID         string
	Budget            auth.Budget
	WaitForCompletion bool
	PollInterval      time.Duration
	PollTimeout       time.Duration
	ContinueOnFail    bool
}

// Runner processes a batch of raw job options sequentially. Each item
// carries its own freshly minted token, idempotency key, and poll loop;
// items share nothing mutable.
type Runner struct {
	Portal    *portal.Client
	Incubator *incubate.Client
	Config    Config
	Logger    *logging.Logger
	Metrics   *metrics.Collector
}

// Run processes every item in order. In strict mode the first failure
// aborts the batch; with ContinueOnFail each failure is captured in its
// item's slot, tagged with the originating index, and processing moves on.
func (r *Runner) Run(ctx context.Context, items []incubate.RawOptions) ([]ItemResult, error) {
	hmacKey, err := r.Portal.GetHMACKey(ctx, r.Config.ProjectID)
	if err != nil {
		return nil, err
	}
	tokens := auth.NewTokenProvider(hmacKey)

	results := make([]ItemResult, 0, len(items))
	for i, opts := range items {
		result, err := r.runItem(ctx, tokens, opts)
		if err != nil {
			tagged := &ItemError{Index: i, Err: err}
			if r.Logger != nil {
				r.Logger.Error("item failed", map[string]any{"index": i, "error": err.Error()})
			}
			if !r.Config.ContinueOnFail {
				return results, tagged
			}
			results = append(results, ItemResult{Index: i, Err: tagged, Error: tagged.Error()})
			continue
		}
		result.Index = i
		results = append(results, *result)
	}

	return results, nil
}

func (r *Runner) runItem(ctx context.Context, tokens *auth.TokenProvider, opts incubate.RawOptions) (*ItemResult, error) {
	// Tokens are minted fresh per submission, never reused across jobs
	token, err := tokens.Mint(r.Config.UserID, r.Config.ProjectID, r.Config.Budget)
	if err != nil {
		return nil, err
	}
	opts.Token = token

	req, err := incubate.BuildRequest(opts)
	if err != nil {
		return nil, err
	}

	sub, err := r.Incubator.Submit(ctx, req)
	if r.Metrics != nil {
		r.Metrics.RecordSubmission(err)
	}
	if err != nil {
		return nil, err
	}

	if r.Logger != nil {
		r.Logger.Info("job submitted", map[string]any{
			"jobId":          sub.VesselID,
			"idempotencyKey": sub.IdempotencyKey,
			"status":         sub.Status,
		})
	}

	result := &ItemResult{Submission: sub}
	if !r.Config.WaitForCompletion {
		return result, nil
	}

	poller := &incubate.Poller{
		Source:   r.Portal,
		Interval: r.Config.PollInterval,
		Timeout:  r.Config.PollTimeout,
	}
	if r.Metrics != nil {
		poller.Observer = r.Metrics
	}

	started := time.Now()
	job, err := poller.Wait(ctx, sub.VesselID)
	if err != nil {
		return nil, err
	}

	flat := incubate.Flatten(job)
	if r.Metrics != nil {
		r.Metrics.RecordResult(flat, time.Since(started))
	}
	result.Result = &flat
	return result, nil
}
