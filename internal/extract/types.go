// Package extract decodes and validates the structured extraction result
// returned by the provider. It is the single validation boundary: anything
// that passes Parse is shape-correct for the rest of the pipeline.
package extract

// ActionItem is one PM action item.
type ActionItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Owner       string `json:"owner,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
}

// Ticket is one development ticket. Type must belong to the configured
// ticket-category set.
type Ticket struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Type               string   `json:"type"`
	Priority           string   `json:"priority,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

// OwnedTask is an action item for someone other than the PM.
type OwnedTask struct {
	Assignee string `json:"assignee"`
	Task     string `json:"task"`
}

// Summary is the meeting summary block.
type Summary struct {
	Overview              string      `json:"overview"`
	KeyDecisions          []string    `json:"key_decisions"`
	AdditionalActionItems []OwnedTask `json:"additional_action_items"`
	NextSteps             []string    `json:"next_steps"`
}

// Result is the validated output of one provider call. After Parse, the
// item slices are never nil (possibly empty) and every ticket type belongs
// to the configured set.
type Result struct {
	Summary       Summary      `json:"summary"`
	PMActionItems []ActionItem `json:"pm_action_items"`
	DevTickets    []Ticket     `json:"dev_tickets"`
}
