package ledger

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ProcessedRecord marks one meeting as successfully processed. Keyed
// uniquely by MeetingID; forced reprocessing overwrites in place.
type ProcessedRecord struct {
	MeetingID   string
	Title       string
	Fingerprint string
	ProcessedAt time.Time
}

// Run is one pipeline invocation with its aggregate outcome counts.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Completed  int
	Skipped    int
	Failed     int
}

// RunMeeting is the per-meeting outcome recorded under a run.
type RunMeeting struct {
	RunID     string
	MeetingID string
	Title     string
	Status    string // "completed", "skipped", "failed"
	Detail    string // skip reason or failure detail
}
