package incubate

import (
	"github.com/vesselworks/vesselctl/pkg/models"
)

// Flatten normalizes a terminal job's nested, variant output into one
// flat record. It is total: every subtype/absence combination flattens
// without error, and missing optional nested fields simply produce no
// corresponding key.
func Flatten(job *models.Job) models.FlatResult {
	flat := models.FlatResult{
		JobID:      job.ID,
		Status:     job.Status,
		IsSuccess:  job.IsSuccess,
		IsFailed:   job.IsFailed,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}

	if job.Error != nil {
		flat.Error = job.Error.Message
	}

	out := job.Output
	if out == nil {
		return flat
	}

	// Raw output rides along verbatim for advanced consumers
	flat.RawOutput = out

	success := out.Success
	flat.Success = &success
	flat.Text = out.Text
	if out.Error != "" {
		flat.Error = out.Error
	}

	res := out.Result
	if res == nil {
		return flat
	}

	flat.ResultSubtype = res.Subtype
	flat.ResultText = res.Result
	cost := res.TotalCostUSD
	flat.TotalCostUSD = &cost
	flat.Usage = res.Usage

	// Presence, not truthiness: 0, false, and {} all count as present
	if res.StructuredOutput != nil {
		flat.StructuredOutput = res.StructuredOutput
	}

	return flat
}
