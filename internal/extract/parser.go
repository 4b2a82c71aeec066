package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaError reports provider output that could not be decoded into a valid
// Result, after the bounded repair attempt. Raw carries the original text
// for diagnostics; it is reported, never silently dropped.
type SchemaError struct {
	Reason string
	Raw    string
}

func (e *SchemaError) Error() string {
	return "schema error: " + e.Reason
}

// Parser validates provider output against the configured ticket-category set.
type Parser struct {
	ticketTypes map[string]bool
}

// NewParser creates a Parser accepting the given ticket categories.
// An empty set falls back to the defaults (backend, frontend, design).
func NewParser(ticketTypes []string) *Parser {
	if len(ticketTypes) == 0 {
		ticketTypes = []string{"backend", "frontend", "design"}
	}
	set := make(map[string]bool, len(ticketTypes))
	for _, t := range ticketTypes {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Parser{ticketTypes: set}
}

// Parse decodes rawText into a Result. Direct decoding is attempted first;
// on failure the text is repaired once (code fences and surrounding prose
// stripped, outermost balanced object located) and decoded again. Anything
// still malformed, or a ticket category outside the configured set, fails
// the whole result with a *SchemaError.
func (p *Parser) Parse(rawText string) (Result, error) {
	var result Result
	if err := json.Unmarshal([]byte(rawText), &result); err != nil {
		repaired, ok := repair(rawText)
		if !ok {
			return Result{}, &SchemaError{Reason: "no JSON object found in response", Raw: rawText}
		}
		if err := json.Unmarshal([]byte(repaired), &result); err != nil {
			return Result{}, &SchemaError{Reason: fmt.Sprintf("invalid JSON after repair: %v", err), Raw: rawText}
		}
	}

	if err := p.validate(&result); err != nil {
		return Result{}, &SchemaError{Reason: err.Error(), Raw: rawText}
	}
	return result, nil
}

// validate checks required fields and coerces optional fields to their
// documented defaults.
func (p *Parser) validate(r *Result) error {
	if strings.TrimSpace(r.Summary.Overview) == "" {
		return fmt.Errorf("summary.overview is empty")
	}

	if r.PMActionItems == nil {
		r.PMActionItems = []ActionItem{}
	}
	if r.DevTickets == nil {
		r.DevTickets = []Ticket{}
	}
	if r.Summary.KeyDecisions == nil {
		r.Summary.KeyDecisions = []string{}
	}
	if r.Summary.AdditionalActionItems == nil {
		r.Summary.AdditionalActionItems = []OwnedTask{}
	}
	if r.Summary.NextSteps == nil {
		r.Summary.NextSteps = []string{}
	}

	for i, item := range r.PMActionItems {
		if strings.TrimSpace(item.Description) == "" && strings.TrimSpace(item.Title) == "" {
			return fmt.Errorf("pm_action_items[%d] has no title or description", i)
		}
	}

	// A mis-categorized ticket fails the whole result: dropping it silently
	// would lose the item.
	for i, ticket := range r.DevTickets {
		typ := strings.ToLower(strings.TrimSpace(ticket.Type))
		if !p.ticketTypes[typ] {
			return fmt.Errorf("dev_tickets[%d] has unknown type %q", i, ticket.Type)
		}
		r.DevTickets[i].Type = typ
		if r.DevTickets[i].AcceptanceCriteria == nil {
			r.DevTickets[i].AcceptanceCriteria = []string{}
		}
	}

	return nil
}

// repair strips code fences and surrounding prose, returning the outermost
// balanced JSON object if one exists.
func repair(raw string) (string, bool) {
	text := raw

	// Prefer the content of a fenced block when present.
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		// Skip a language tag like "json" on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			firstLine := strings.TrimSpace(rest[:nl])
			if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}") {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			text = rest[:end]
		} else {
			text = rest
		}
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
