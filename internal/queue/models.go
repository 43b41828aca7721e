package queue

import "time"

// Status describes a transcription job's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// AllStatuses lists job statuses in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}
}

// Job is one queued transcription request.
type Job struct {
	ID           int64
	VideoID      string
	VideoPath    string
	Category     string
	Title        string
	Tags         []string
	Status       Status
	TranscriptID string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
