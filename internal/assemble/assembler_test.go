package assemble

import (
	"strings"
	"testing"
	"time"

	"github.com/mwhitby/debrief/internal/source"
)

func sampleMeeting() source.MeetingRecord {
	return source.MeetingRecord{
		ID:        "mtg-1",
		Title:     "Roadmap Review",
		CreatedAt: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		Transcript: []source.Turn{
			{Speaker: "Me", Text: "Let's walk through the Q3 roadmap and lock the launch date."},
			{Speaker: "Them", Text: "The payment service migration needs to land first."},
			{Speaker: "Me", Text: "Agreed, I'll own the migration ticket."},
		},
		EnhancedNotes: "## Decisions\n- Launch locked for August 12\n- Migration blocks launch",
		ManualNotes:   "remember to loop in the infra team",
	}
}

func TestAssemble_SectionOrder(t *testing.T) {
	ctx := Assemble(sampleMeeting(), 0)

	ti := strings.Index(ctx.Text, "# Transcript")
	ei := strings.Index(ctx.Text, "# Enhanced Notes")
	mi := strings.Index(ctx.Text, "# Manual Notes")
	if ti < 0 || ei < 0 || mi < 0 {
		t.Fatalf("missing section headers in:\n%s", ctx.Text)
	}
	if !(ti < ei && ei < mi) {
		t.Errorf("section order = %d, %d, %d; want transcript < enhanced < manual", ti, ei, mi)
	}
	if ctx.LowSignal {
		t.Error("LowSignal = true for a meeting with content")
	}
	if ctx.Manifest.Truncated {
		t.Error("Truncated = true for a meeting under budget")
	}
}

func TestAssemble_SpeakerAttribution(t *testing.T) {
	ctx := Assemble(sampleMeeting(), 0)

	if !strings.Contains(ctx.Text, "**Me:** Let's walk through") {
		t.Errorf("transcript missing speaker-prefixed line:\n%s", ctx.Text)
	}
	if !strings.Contains(ctx.Text, "**Them:** The payment service migration") {
		t.Errorf("transcript missing Them line:\n%s", ctx.Text)
	}
}

func TestAssemble_NoTranscript(t *testing.T) {
	m := sampleMeeting()
	m.Transcript = nil

	ctx := Assemble(m, 0)

	if !strings.Contains(ctx.Text, "(no transcript available)") {
		t.Errorf("missing no-transcript marker:\n%s", ctx.Text)
	}
	if !strings.Contains(ctx.Text, "# Enhanced Notes") {
		t.Errorf("notes section dropped:\n%s", ctx.Text)
	}
}

func TestAssemble_ManualDuplicateOfEnhanced(t *testing.T) {
	m := sampleMeeting()
	m.ManualNotes = m.EnhancedNotes

	ctx := Assemble(m, 0)

	if strings.Contains(ctx.Text, "# Manual Notes") {
		t.Errorf("duplicate manual notes section included:\n%s", ctx.Text)
	}
	if ctx.Manifest.ManualChars != 0 {
		t.Errorf("ManualChars = %d, want 0", ctx.Manifest.ManualChars)
	}
}

func TestAssemble_EmptyMeetingLowSignal(t *testing.T) {
	ctx := Assemble(source.MeetingRecord{ID: "empty", Title: "Quick Chat"}, 0)

	if !ctx.LowSignal {
		t.Error("LowSignal = false for empty meeting")
	}
	if ctx.Text == "" {
		t.Error("Text empty; even empty meetings produce a minimal context")
	}
}

func TestAssemble_TruncationKeepsHeadAndTail(t *testing.T) {
	m := source.MeetingRecord{ID: "long", Title: "Long Meeting"}
	for i := 0; i < 200; i++ {
		m.Transcript = append(m.Transcript, source.Turn{
			Speaker: "Me",
			Text:    strings.Repeat("word ", 20) + "turn",
		})
	}
	m.Transcript[0].Text = "FIRST opening remark"
	m.Transcript[199].Text = "LAST closing remark"

	ctx := Assemble(m, 2000)

	if !ctx.Manifest.Truncated {
		t.Fatal("Truncated = false for transcript over budget")
	}
	if len(ctx.Text) > 2100 {
		t.Errorf("assembled length = %d, want near the 2000 budget", len(ctx.Text))
	}
	if !strings.Contains(ctx.Text, "FIRST opening remark") {
		t.Error("head turn dropped by truncation")
	}
	if !strings.Contains(ctx.Text, "LAST closing remark") {
		t.Error("tail turn dropped by truncation")
	}
	if !strings.Contains(ctx.Text, "[... transcript truncated ...]") {
		t.Error("missing truncation marker")
	}
}

func TestAssemble_NotesNeverTruncated(t *testing.T) {
	m := sampleMeeting()
	m.EnhancedNotes = strings.Repeat("decision line\n", 100)

	ctx := Assemble(m, 2000)

	if ctx.Manifest.EnhancedChars != len(strings.TrimSpace(m.EnhancedNotes)) {
		t.Errorf("EnhancedChars = %d, want full notes length %d",
			ctx.Manifest.EnhancedChars, len(strings.TrimSpace(m.EnhancedNotes)))
	}
}

func TestFingerprint_StableAndSensitive(t *testing.T) {
	a := Assemble(sampleMeeting(), 0)
	b := Assemble(sampleMeeting(), 0)
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical meetings produced different fingerprints")
	}

	m := sampleMeeting()
	m.ManualNotes = "remember to loop in the infra team, and legal"
	c := Assemble(m, 0)
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("edited notes produced the same fingerprint")
	}
}
