package domain

import "time"

// BuildStatus is the lifecycle state of a build run
type BuildStatus string

const (
	BuildStatusInProgress BuildStatus = "in_progress"
	BuildStatusCompleted  BuildStatus = "completed"
	BuildStatusFailed     BuildStatus = "failed"
)

// Build represents one run of the content pipeline
type Build struct {
	ID           string
	Status       BuildStatus
	Posts        int
	Authors      int
	Repositories int
	StartedAt    time.Time
	FinishedAt   *time.Time
}
