package coordinator

import "github.com/prospectline/prospect-matcher/internal/prospects"

// Status is the lifecycle state of a matching job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Progress milestones reported to subscribers. Even near-instant work walks
// through processing before completing, so the observable contract stays
// uniform.
const (
	progressQueued     = 0
	progressStarted    = 10
	progressIdentified = 30
	progressFetched    = 80
	progressDone       = 100
)

// Job is one tracked matching request. Consumers only ever see value
// snapshots; the coordinator owns the live record.
type Job struct {
	ID         string
	ProspectID string
	Company    string
	JobTitle   string
	Location   string
	Status     Status
	Progress   int
	Matches    []prospects.Candidate
	Err        string
}

// Terminal reports whether the job reached a final state. Terminal jobs never
// transition again; they can only be removed by cleanup.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusError
}

func (j *Job) key() prospects.ProcessingKey {
	return prospects.NewProcessingKey(prospects.MatchRequest{
		ProspectID: j.ProspectID,
		Company:    j.Company,
		JobTitle:   j.JobTitle,
		Location:   j.Location,
	})
}
