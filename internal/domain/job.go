package domain

import "time"

// JobStatus enumerates photo job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are permitted from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// PhotoJob encapsulates the lifecycle of a single photo generation. Jobs are
// created in queued state by the orchestrator and always reach exactly one
// terminal state; terminal jobs are immutable.
type PhotoJob struct {
	ID              string
	UserID          string
	SourceURL       string
	Style           string
	Status          JobStatus
	ReservedCredits int
	ProcessedURL    string
	ThumbnailURL    string
	ErrorReason     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Styles supported by the inference provider.
const (
	StyleCorporate = "corporate"
	StyleCreative  = "creative"
	StyleFormal    = "formal"
	StyleCasual    = "casual"
)

// ValidStyle reports whether the given style is supported.
func ValidStyle(style string) bool {
	switch style {
	case StyleCorporate, StyleCreative, StyleFormal, StyleCasual:
		return true
	}
	return false
}
