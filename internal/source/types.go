package source

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when the meeting-capture service cannot be
// reached at all. Callers treat it as fatal for the whole run.
var ErrUnavailable = errors.New("meeting source unavailable")

// Turn is a single attributed utterance in a meeting transcript.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// MeetingRecord is one captured meeting as fetched from the source.
// It is read-only to the pipeline: nothing downstream mutates it.
type MeetingRecord struct {
	ID            string
	Title         string
	CreatedAt     time.Time
	Transcript    []Turn
	EnhancedNotes string
	ManualNotes   string
}
