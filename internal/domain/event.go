package domain

import "time"

// EventType enumerates notification event kinds. Values match the job status
// they announce.
type EventType string

const (
	EventQueued     EventType = "queued"
	EventProcessing EventType = "processing"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
)

// JobEvent is the JSON wire shape pushed to a user's notification channel.
// Within one job, events are emitted strictly in lifecycle order.
type JobEvent struct {
	Type         EventType `json:"type"`
	PhotoID      string    `json:"photo_id"`
	UserID       string    `json:"-"`
	Status       JobStatus `json:"status"`
	ProcessedURL string    `json:"processed_url,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewJobEvent builds an event announcing the job's current status.
func NewJobEvent(job *PhotoJob) JobEvent {
	ev := JobEvent{
		PhotoID:   job.ID,
		UserID:    job.UserID,
		Status:    job.Status,
		Timestamp: time.Now().UTC(),
	}
	switch job.Status {
	case JobStatusQueued:
		ev.Type = EventQueued
	case JobStatusProcessing:
		ev.Type = EventProcessing
	case JobStatusCompleted:
		ev.Type = EventCompleted
		ev.ProcessedURL = job.ProcessedURL
		ev.ThumbnailURL = job.ThumbnailURL
	case JobStatusFailed:
		ev.Type = EventFailed
		ev.Error = job.ErrorReason
	}
	return ev
}
