// Package pipeline sequences the extraction stages for one or many meetings:
// ledger check, context assembly, skip decision, provider call, parsing,
// enrichment, and ledger commit. Meetings in a batch are independent; one
// failure never aborts the rest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mwhitby/debrief/internal/assemble"
	"github.com/mwhitby/debrief/internal/enrich"
	"github.com/mwhitby/debrief/internal/extract"
	"github.com/mwhitby/debrief/internal/provider"
	"github.com/mwhitby/debrief/internal/source"
)

// Status is the terminal state of one meeting's pipeline.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Failure kinds beyond the provider error kinds.
const (
	KindSchemaError Kind = "schema_error"
	KindLedgerError Kind = "ledger_error"
)

// Kind aliases provider.Kind so failure classification is uniform.
type Kind = provider.Kind

// Outcome is the terminal result for one meeting in a batch.
type Outcome struct {
	MeetingID string
	Title     string
	Status    Status
	// Reason is set for skipped meetings.
	Reason string
	// ErrKind and Detail are set for failed meetings.
	ErrKind Kind
	Detail  string
	// Result is set for completed meetings.
	Result *enrich.Result
}

// Summary aggregates a batch's outcome counts.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
}

func (s Summary) String() string {
	return fmt.Sprintf("completed: %d, skipped: %d, failed: %d", s.Completed, s.Skipped, s.Failed)
}

// Extractor is the provider gateway capability the pipeline needs.
type Extractor interface {
	Extract(ctx context.Context, req provider.Request) (string, error)
}

// Tracker is the processed-state ledger capability the pipeline needs.
type Tracker interface {
	ShouldProcess(ctx context.Context, meetingID, fingerprint string, force bool) (bool, error)
	Commit(ctx context.Context, meetingID, title, fingerprint string) error
}

// Events receives per-meeting outcomes as they settle. Output writers
// implement this to persist artifacts; implementations must be safe for
// concurrent use.
type Events interface {
	MeetingCompleted(meetingID string, result enrich.Result)
	MeetingSkipped(meetingID, reason string)
	MeetingFailed(meetingID string, kind Kind, detail string)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) MeetingCompleted(string, enrich.Result) {}
func (NopEvents) MeetingSkipped(string, string)          {}
func (NopEvents) MeetingFailed(string, Kind, string)     {}

// Runner orchestrates the extraction pipeline.
type Runner struct {
	gateway  Extractor
	tracker  Tracker
	parser   *extract.Parser
	rules    enrich.Rules
	prompt   provider.PromptSpec
	model    string
	maxChars int
	workers  int
	events   Events
	logger   *slog.Logger
}

// Options configures a Runner beyond its required collaborators.
type Options struct {
	// Model is the provider model identifier.
	Model string
	// MaxContextChars bounds assembled context size (0 = default).
	MaxContextChars int
	// Workers bounds in-flight meetings in a batch (0 or 1 = sequential).
	Workers int
	// Events receives per-meeting outcomes; nil means discard.
	Events Events
}

// NewRunner creates a Runner wired to its collaborators.
func NewRunner(gateway Extractor, tracker Tracker, parser *extract.Parser, rules enrich.Rules, prompt provider.PromptSpec, opts Options) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	events := opts.Events
	if events == nil {
		events = NopEvents{}
	}
	return &Runner{
		gateway:  gateway,
		tracker:  tracker,
		parser:   parser,
		rules:    rules,
		prompt:   prompt,
		model:    opts.Model,
		maxChars: opts.MaxContextChars,
		workers:  workers,
		events:   events,
		logger:   slog.Default(),
	}
}

// fatalError marks a run-level failure: the remaining batch is aborted.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Run processes a batch of meetings and returns their outcomes in input
// order. Per-meeting failures are captured in the outcome list; only
// run-level fatal errors (bad provider credentials, cancellation) are
// returned, and outcomes settled before the abort remain valid.
func (r *Runner) Run(ctx context.Context, meetings []source.MeetingRecord, force bool) ([]Outcome, Summary, error) {
	outcomes := make([]Outcome, len(meetings))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	seen := make(map[string]bool, len(meetings))
	for i, meeting := range meetings {
		if meeting.ID == "" || seen[meeting.ID] {
			outcomes[i] = Outcome{
				MeetingID: meeting.ID,
				Title:     meeting.Title,
				Status:    StatusSkipped,
				Reason:    "duplicate or missing meeting id",
			}
			continue
		}
		seen[meeting.ID] = true

		g.Go(func() error {
			outcome := r.processOne(gCtx, meeting, force)
			outcomes[i] = outcome
			r.publish(outcome)

			switch outcome.Status {
			case StatusFailed:
				if outcome.ErrKind == provider.KindAuth {
					return &fatalError{err: fmt.Errorf("provider auth failed: %s", outcome.Detail)}
				}
			}
			return nil
		})
	}

	runErr := g.Wait()
	if runErr != nil {
		var fe *fatalError
		if !errors.As(runErr, &fe) && !errors.Is(runErr, context.Canceled) {
			runErr = fmt.Errorf("pipeline run: %w", runErr)
		}
	}

	var summary Summary
	for i := range outcomes {
		switch outcomes[i].Status {
		case StatusCompleted:
			summary.Completed++
		case StatusSkipped:
			summary.Skipped++
		case StatusFailed:
			summary.Failed++
		default:
			// Aborted before settling.
			outcomes[i].Status = StatusFailed
			outcomes[i].MeetingID = meetings[i].ID
			outcomes[i].Title = meetings[i].Title
			outcomes[i].ErrKind = provider.KindUnavailable
			outcomes[i].Detail = "run aborted before processing"
			summary.Failed++
		}
	}

	return outcomes, summary, runErr
}

// processOne drives a single meeting Pending -> Skipped | Failed | Completed.
func (r *Runner) processOne(ctx context.Context, meeting source.MeetingRecord, force bool) Outcome {
	out := Outcome{MeetingID: meeting.ID, Title: meeting.Title}
	log := r.logger.With("meeting_id", meeting.ID, "title", meeting.Title)

	// Assembly never fails; the fingerprint is derived from the assembled
	// text, so the ledger check comes right after.
	asm := assemble.Assemble(meeting, r.maxChars)
	fingerprint := asm.Fingerprint()

	needed, err := r.tracker.ShouldProcess(ctx, meeting.ID, fingerprint, force)
	if err != nil {
		// A ledger failure must not be read as "already processed" or
		// "never processed"; fail the meeting and let the next run retry.
		out.Status = StatusFailed
		out.ErrKind = KindLedgerError
		out.Detail = err.Error()
		log.Error("ledger check failed", "error", err)
		return out
	}
	if !needed {
		out.Status = StatusSkipped
		out.Reason = "already processed"
		log.Debug("meeting already processed")
		return out
	}

	if skip, reason := r.rules.ShouldSkip(meeting.Title, asm.LowSignal); skip {
		out.Status = StatusSkipped
		out.Reason = reason
		log.Info("skipping meeting", "reason", reason)
		return out
	}

	start := time.Now()
	raw, err := r.gateway.Extract(ctx, provider.Request{
		System: r.prompt.SystemPrompt(),
		User:   r.prompt.UserPrompt(asm.Text),
		Model:  r.model,
	})
	if err != nil {
		out.Status = StatusFailed
		out.ErrKind = provider.KindOf(err)
		if out.ErrKind == "" {
			out.ErrKind = provider.KindUnavailable
		}
		out.Detail = err.Error()
		log.Error("provider call failed", "kind", out.ErrKind, "error", err)
		return out
	}
	log.Debug("provider call finished", "duration", time.Since(start), "response_chars", len(raw))

	parsed, err := r.parser.Parse(raw)
	if err != nil {
		out.Status = StatusFailed
		out.ErrKind = KindSchemaError
		out.Detail = err.Error()
		var se *extract.SchemaError
		if errors.As(err, &se) {
			log.Error("schema validation failed", "reason", se.Reason, "raw", se.Raw)
		} else {
			log.Error("schema validation failed", "error", err)
		}
		return out
	}

	enriched := r.rules.Apply(parsed)

	if err := r.tracker.Commit(ctx, meeting.ID, meeting.Title, fingerprint); err != nil {
		out.Status = StatusFailed
		out.ErrKind = KindLedgerError
		out.Detail = err.Error()
		log.Error("ledger commit failed", "error", err)
		return out
	}

	out.Status = StatusCompleted
	out.Result = &enriched
	log.Info("meeting processed",
		"pm_items", len(enriched.PMActionItems),
		"dev_tickets", len(enriched.DevTickets),
	)
	return out
}

func (r *Runner) publish(out Outcome) {
	switch out.Status {
	case StatusCompleted:
		if out.Result != nil {
			r.events.MeetingCompleted(out.MeetingID, *out.Result)
		}
	case StatusSkipped:
		r.events.MeetingSkipped(out.MeetingID, out.Reason)
	case StatusFailed:
		r.events.MeetingFailed(out.MeetingID, out.ErrKind, out.Detail)
	}
}
