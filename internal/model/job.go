package model

type JobStatus string

const (
	StatusSuccess JobStatus = "success"
	StatusPartial JobStatus = "partial"
	StatusFailed  JobStatus = "failed"
)

// StatusFor folds per-item outcomes into a run status: success when nothing
// went wrong, partial when some but not all items failed, failed otherwise.
func StatusFor(total, failed, warnings int) JobStatus {
	switch {
	case failed == 0 && warnings == 0:
		return StatusSuccess
	case failed < total:
		return StatusPartial
	default:
		return StatusFailed
	}
}

type JobRun struct {
	JobName      string         `json:"job_name" db:"job_name"`
	TargetDate   string         `json:"target_date" db:"target_date"`
	Status       JobStatus      `json:"status" db:"status"`
	Metrics      map[string]any `json:"metrics_json" db:"-"`
	ErrorMessage *string        `json:"error_message" db:"error_message"`
}
