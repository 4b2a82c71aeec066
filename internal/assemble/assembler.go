// Package assemble merges a meeting's transcript, enhanced notes, and manual
// notes into one bounded context block for the extraction prompt.
package assemble

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mwhitby/debrief/internal/source"
)

const (
	// DefaultMaxChars bounds the assembled context size. Roughly 32k
	// characters keeps the prompt well inside every provider's window.
	DefaultMaxChars = 32000

	// minSignalChars is the threshold below which an assembled context is
	// considered too thin to be worth a provider call.
	minSignalChars = 100

	transcriptHeader = "# Transcript"
	enhancedHeader   = "# Enhanced Notes"
	manualHeader     = "# Manual Notes"
	sectionSep       = "\n\n---\n\n"
	truncationMarker = "\n\n[... transcript truncated ...]\n\n"
)

// Manifest records which sources contributed to a context and at what size.
type Manifest struct {
	TranscriptChars int
	EnhancedChars   int
	ManualChars     int
	Truncated       bool
}

// Context is the assembled text block handed to the provider gateway.
type Context struct {
	Text      string
	Manifest  Manifest
	LowSignal bool
}

// Fingerprint returns a stable content hash of the assembled text. Two
// meetings with identical source material produce the same fingerprint,
// so edited notes are detected as new content on the next run.
func (c Context) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.Text))
	return hex.EncodeToString(sum[:])
}

// Assemble builds the context for one meeting. Sections appear in a fixed
// order (transcript, enhanced notes, manual notes); an absent transcript is
// noted with a marker. If the total exceeds maxChars, transcript turns are
// dropped from the middle — openings and closings carry most of the signal —
// and the notes sections are never cut. Assemble never fails: an empty
// meeting yields a minimal context flagged LowSignal.
func Assemble(meeting source.MeetingRecord, maxChars int) Context {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	enhanced := strings.TrimSpace(meeting.EnhancedNotes)
	manual := strings.TrimSpace(meeting.ManualNotes)
	// Manual notes that merely duplicate the enhanced notes add no signal.
	if manual != "" && manual == enhanced {
		manual = ""
	}

	var notes []string
	if enhanced != "" {
		notes = append(notes, enhancedHeader+"\n\n"+enhanced)
	}
	if manual != "" {
		notes = append(notes, manualHeader+"\n\n"+manual)
	}

	notesLen := 0
	for _, s := range notes {
		notesLen += len(s) + len(sectionSep)
	}

	transcriptBudget := maxChars - notesLen - len(transcriptHeader) - 2
	transcriptBody, truncated := renderTranscript(meeting.Transcript, transcriptBudget)

	var sections []string
	if transcriptBody != "" {
		sections = append(sections, transcriptHeader+"\n\n"+transcriptBody)
	} else {
		sections = append(sections, transcriptHeader+"\n\n(no transcript available)")
	}
	sections = append(sections, notes...)

	text := strings.Join(sections, sectionSep)

	manifest := Manifest{
		TranscriptChars: len(transcriptBody),
		EnhancedChars:   len(enhanced),
		ManualChars:     len(manual),
		Truncated:       truncated,
	}

	contentLen := manifest.TranscriptChars + manifest.EnhancedChars + manifest.ManualChars
	return Context{
		Text:      text,
		Manifest:  manifest,
		LowSignal: contentLen < minSignalChars,
	}
}

// renderTranscript formats speaker-prefixed lines, keeping head and tail
// turns and dropping the middle when the budget is exceeded.
func renderTranscript(turns []source.Turn, budget int) (string, bool) {
	if len(turns) == 0 {
		return "", false
	}

	lines := make([]string, len(turns))
	total := 0
	for i, turn := range turns {
		lines[i] = fmt.Sprintf("**%s:** %s", turn.Speaker, turn.Text)
		total += len(lines[i]) + 2
	}

	if budget <= 0 {
		// Notes alone already fill the budget; keep a symbolic head.
		return lines[0] + truncationMarker, true
	}
	if total <= budget {
		return strings.Join(lines, "\n\n"), false
	}

	// Alternate taking lines from the head and the tail until the budget
	// (minus the marker) is spent, then stitch the two halves together.
	remaining := budget - len(truncationMarker)
	head, tail := 0, len(lines)
	for head < tail {
		if n := len(lines[head]) + 2; n <= remaining {
			remaining -= n
			head++
		} else {
			break
		}
		if head >= tail {
			break
		}
		if n := len(lines[tail-1]) + 2; n <= remaining {
			remaining -= n
			tail--
		} else {
			break
		}
	}

	if head == 0 {
		// Not even one turn fits; hard-cut the first line.
		cut := budget - len(truncationMarker)
		if cut < 0 {
			cut = 0
		}
		if cut > len(lines[0]) {
			cut = len(lines[0])
		}
		return lines[0][:cut] + truncationMarker, true
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(lines[:head], "\n\n"))
	sb.WriteString(truncationMarker)
	if tail < len(lines) {
		sb.WriteString(strings.Join(lines[tail:], "\n\n"))
	}
	return sb.String(), true
}
