// Package enrich post-processes extraction results: team-handle resolution,
// priority tagging, and the recurring-meeting skip decision. The heuristics
// here are keyword and substring matches; each lives in its own function so
// its edge cases stay testable.
package enrich

import (
	"strconv"
	"strings"

	"github.com/mwhitby/debrief/internal/extract"
)

// Rules holds the configured enrichment inputs.
type Rules struct {
	// Handles maps full names to chat handles, e.g. "Tristan Kaiser" -> "@tristan".
	Handles map[string]string
	// PriorityKeywords mark an item as priority when found in its description.
	PriorityKeywords []string
	// SkipKeywords mark a meeting as recurring/low-value by title match.
	SkipKeywords []string
}

// Result is an extraction result with owners rewritten to "Name (@handle)"
// where resolvable and items flagged priority by keyword.
type Result struct {
	extract.Result
	PriorityFlags PriorityFlags
}

// PriorityFlags records which items were tagged priority, by index.
type PriorityFlags struct {
	PMActionItems []bool
	DevTickets    []bool
}

// ShouldSkip reports whether a meeting should be skipped without a provider
// call, with a human-readable reason. True when the title matches any
// configured recurring keyword (case-insensitive substring) or the
// assembled context carried no meaningful signal.
func (r Rules) ShouldSkip(title string, lowSignal bool) (bool, string) {
	titleLower := strings.ToLower(title)
	for _, kw := range r.SkipKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(titleLower, strings.ToLower(kw)) {
			return true, "title matches recurring keyword " + strconv.Quote(kw)
		}
	}
	if lowSignal {
		return true, "meeting content is empty or too short"
	}
	return false, ""
}

// ResolveOwner rewrites a raw person reference to "Name (@handle)".
// Matching is exact full-name first (case-insensitive), then unique
// first-name. Ambiguous first names and unknown names are left unchanged
// rather than guessed.
func (r Rules) ResolveOwner(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" || len(r.Handles) == 0 {
		return raw
	}

	nameLower := strings.ToLower(name)
	for full, handle := range r.Handles {
		if strings.ToLower(full) == nameLower {
			return full + " (" + normalizeHandle(handle) + ")"
		}
	}

	firstName := nameLower
	if i := strings.IndexByte(firstName, ' '); i > 0 {
		firstName = firstName[:i]
	}

	var matchFull, matchHandle string
	matches := 0
	for full, handle := range r.Handles {
		fullFirst := strings.ToLower(full)
		if i := strings.IndexByte(fullFirst, ' '); i > 0 {
			fullFirst = fullFirst[:i]
		}
		if fullFirst == firstName {
			matches++
			matchFull, matchHandle = full, handle
		}
	}
	if matches == 1 {
		return matchFull + " (" + normalizeHandle(matchHandle) + ")"
	}
	return raw
}

// IsPriority reports whether text contains any configured priority keyword
// as a case-insensitive substring.
func (r Rules) IsPriority(text string) bool {
	textLower := strings.ToLower(text)
	for _, kw := range r.PriorityKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(textLower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Apply runs handle resolution and priority tagging over an extraction
// result. The input is not mutated. Priority tagging is additive: items the
// provider already marked high keep that marking.
func (r Rules) Apply(in extract.Result) Result {
	out := Result{Result: in}

	out.PMActionItems = make([]extract.ActionItem, len(in.PMActionItems))
	out.PriorityFlags.PMActionItems = make([]bool, len(in.PMActionItems))
	for i, item := range in.PMActionItems {
		item.Owner = r.ResolveOwner(item.Owner)
		flagged := r.IsPriority(item.Description) || r.IsPriority(item.Title)
		if flagged && item.Priority == "" {
			item.Priority = "high"
		}
		out.PMActionItems[i] = item
		out.PriorityFlags.PMActionItems[i] = flagged || strings.EqualFold(item.Priority, "high")
	}

	out.DevTickets = make([]extract.Ticket, len(in.DevTickets))
	out.PriorityFlags.DevTickets = make([]bool, len(in.DevTickets))
	for i, ticket := range in.DevTickets {
		flagged := r.IsPriority(ticket.Description) || r.IsPriority(ticket.Title)
		if flagged && ticket.Priority == "" {
			ticket.Priority = "high"
		}
		out.DevTickets[i] = ticket
		out.PriorityFlags.DevTickets[i] = flagged || strings.EqualFold(ticket.Priority, "high")
	}

	out.Summary = in.Summary
	out.Summary.AdditionalActionItems = make([]extract.OwnedTask, len(in.Summary.AdditionalActionItems))
	for i, task := range in.Summary.AdditionalActionItems {
		if !strings.EqualFold(task.Assignee, "unassigned") {
			task.Assignee = r.ResolveOwner(task.Assignee)
		}
		out.Summary.AdditionalActionItems[i] = task
	}

	return out
}

func normalizeHandle(handle string) string {
	if strings.HasPrefix(handle, "@") {
		return handle
	}
	return "@" + handle
}
