// Package output persists pipeline results as files: PM tasks and dev
// tickets as JSON, the meeting summary as chat-ready Markdown.
package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mwhitby/debrief/internal/enrich"
	"github.com/mwhitby/debrief/internal/pipeline"
	"github.com/mwhitby/debrief/internal/source"
)

// Writer implements pipeline.Events, writing one artifact set per completed
// meeting under pm_tasks/, dev_tickets/, and summaries/.
type Writer struct {
	baseDir string
	logger  *slog.Logger

	mu       sync.Mutex
	meetings map[string]source.MeetingRecord
	paths    map[string][]string
	now      func() time.Time
}

// NewWriter creates a Writer rooted at baseDir, creating the output
// directories if needed.
func NewWriter(baseDir string) (*Writer, error) {
	for _, sub := range []string{"pm_tasks", "dev_tickets", "summaries"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory %s: %w", sub, err)
		}
	}
	return &Writer{
		baseDir:  baseDir,
		logger:   slog.Default(),
		meetings: make(map[string]source.MeetingRecord),
		paths:    make(map[string][]string),
		now:      time.Now,
	}, nil
}

// Register associates meeting metadata with its id so completed events can
// name files after the meeting. Call before the pipeline run.
func (w *Writer) Register(meetings []source.MeetingRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range meetings {
		w.meetings[m.ID] = m
	}
}

// WrittenPaths returns the artifact paths written for a meeting.
func (w *Writer) WrittenPaths(meetingID string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paths[meetingID]
}

// MeetingCompleted writes the artifact set for one completed meeting.
// Write failures are logged, not propagated: the pipeline outcome and
// ledger commit already happened and stay valid.
func (w *Writer) MeetingCompleted(meetingID string, result enrich.Result) {
	w.mu.Lock()
	meeting := w.meetings[meetingID]
	w.mu.Unlock()

	stem := w.filenameStem(meeting, meetingID)
	var written []string

	if len(result.PMActionItems) > 0 {
		path := filepath.Join(w.baseDir, "pm_tasks", stem+".json")
		if err := w.writeJSON(path, meeting, meetingID, map[string]any{"tasks": result.PMActionItems}); err != nil {
			w.logger.Error("writing pm tasks", "meeting_id", meetingID, "error", err)
		} else {
			written = append(written, path)
		}
	}

	if len(result.DevTickets) > 0 {
		path := filepath.Join(w.baseDir, "dev_tickets", stem+".json")
		if err := w.writeJSON(path, meeting, meetingID, map[string]any{"tickets": result.DevTickets}); err != nil {
			w.logger.Error("writing dev tickets", "meeting_id", meetingID, "error", err)
		} else {
			written = append(written, path)
		}
	}

	path := filepath.Join(w.baseDir, "summaries", stem+".md")
	if err := w.writeSummary(path, meeting, meetingID, result); err != nil {
		w.logger.Error("writing summary", "meeting_id", meetingID, "error", err)
	} else {
		written = append(written, path)
	}

	w.mu.Lock()
	w.paths[meetingID] = written
	w.mu.Unlock()
}

// MeetingSkipped logs the skip; skipped meetings produce no artifacts.
func (w *Writer) MeetingSkipped(meetingID, reason string) {
	w.logger.Info("meeting skipped", "meeting_id", meetingID, "reason", reason)
}

// MeetingFailed logs the failure; the raw detail stays in the log for
// diagnostics.
func (w *Writer) MeetingFailed(meetingID string, kind pipeline.Kind, detail string) {
	w.logger.Error("meeting failed", "meeting_id", meetingID, "kind", kind, "detail", detail)
}

func (w *Writer) writeJSON(path string, meeting source.MeetingRecord, meetingID string, payload map[string]any) error {
	doc := map[string]any{
		"meeting_title": meeting.Title,
		"meeting_id":    meetingID,
		"generated_at":  w.now().UTC().Format(time.RFC3339),
	}
	if !meeting.CreatedAt.IsZero() {
		doc["meeting_date"] = meeting.CreatedAt.UTC().Format(time.RFC3339)
	}
	for k, v := range payload {
		doc[k] = v
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (w *Writer) writeSummary(path string, meeting source.MeetingRecord, meetingID string, result enrich.Result) error {
	var sb strings.Builder

	sb.WriteString("---\n")
	if meeting.Title != "" {
		fmt.Fprintf(&sb, "Meeting: %s\n", meeting.Title)
	}
	if !meeting.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "Date: %s\n", meeting.CreatedAt.UTC().Format("2006-01-02"))
	}
	fmt.Fprintf(&sb, "Meeting ID: %s\n", meetingID)
	fmt.Fprintf(&sb, "Generated: %s\n", w.now().UTC().Format(time.RFC3339))
	sb.WriteString("---\n\n")

	sb.WriteString(RenderSummary(result))

	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// RenderSummary formats an enriched result as chat-ready Markdown.
func RenderSummary(result enrich.Result) string {
	var parts []string

	parts = append(parts, "*Meeting Summary*", result.Summary.Overview, "")

	if len(result.Summary.KeyDecisions) > 0 {
		parts = append(parts, "*Key Decisions*")
		for _, d := range result.Summary.KeyDecisions {
			parts = append(parts, "• "+d)
		}
		parts = append(parts, "")
	}

	if len(result.DevTickets) > 0 {
		parts = append(parts, fmt.Sprintf("*Development Tickets (%d)*", len(result.DevTickets)))
		for _, t := range result.DevTickets {
			parts = append(parts, fmt.Sprintf("• [%s] %s", strings.ToUpper(t.Type), t.Title))
		}
		parts = append(parts, "")
	}

	items := collectActionItems(result)
	if len(items) > 0 {
		parts = append(parts, fmt.Sprintf("*Action Items (%d)*", len(items)))
		parts = append(parts, items...)
		parts = append(parts, "")
	}

	if len(result.Summary.NextSteps) > 0 {
		parts = append(parts, "*Next Steps*")
		for _, s := range result.Summary.NextSteps {
			parts = append(parts, "• "+s)
		}
	}

	return strings.TrimRight(strings.Join(parts, "\n"), "\n") + "\n"
}

func collectActionItems(result enrich.Result) []string {
	var items []string
	for _, item := range result.PMActionItems {
		line := "• " + firstNonEmpty(item.Title, item.Description)
		if item.Owner != "" {
			line = fmt.Sprintf("• [%s] %s", item.Owner, firstNonEmpty(item.Title, item.Description))
		}
		items = append(items, line)
	}
	for _, task := range result.Summary.AdditionalActionItems {
		if task.Assignee != "" && !strings.EqualFold(task.Assignee, "unassigned") {
			items = append(items, fmt.Sprintf("• [%s] %s", task.Assignee, task.Task))
		} else {
			items = append(items, "• "+task.Task)
		}
	}
	return items
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// filenameStem builds "<date>_<sanitized title>_<hhmmss>" for artifact files.
func (w *Writer) filenameStem(meeting source.MeetingRecord, meetingID string) string {
	var parts []string

	date := w.now()
	if !meeting.CreatedAt.IsZero() {
		date = meeting.CreatedAt
	}
	parts = append(parts, date.UTC().Format("2006-01-02"))

	if meeting.Title != "" {
		parts = append(parts, sanitizeFilename(meeting.Title, 50))
	} else if len(meetingID) >= 12 {
		parts = append(parts, meetingID[:12])
	} else if meetingID != "" {
		parts = append(parts, meetingID)
	}

	// Timestamp suffix keeps forced reprocesses from clobbering earlier runs.
	parts = append(parts, w.now().UTC().Format("150405"))

	return strings.Join(parts, "_")
}

func sanitizeFilename(text string, maxLen int) string {
	replacer := strings.NewReplacer(
		"<", "_", ">", "_", ":", "_", "\"", "_", "/", "_",
		"\\", "_", "|", "_", "?", "_", "*", "_", " ", "_",
	)
	text = replacer.Replace(text)
	for strings.Contains(text, "__") {
		text = strings.ReplaceAll(text, "__", "_")
	}
	if len(text) > maxLen {
		text = text[:maxLen]
	}
	return strings.Trim(text, "_")
}

var _ pipeline.Events = (*Writer)(nil)
