package provider

import (
	"fmt"
	"strings"
)

const baseSystemPrompt = `You are an assistant that analyzes meeting notes and extracts structured information.

Your task is to analyze meeting notes and extract:
1. Action items specifically for the PM (Product Manager)
2. Development tickets that need to be created, categorized by type
3. A concise meeting summary plus any additional action items not captured above, with owners named where possible

Be specific and actionable. For development tickets, include enough context that an engineer could understand what needs to be built.`

const extractionPromptTemplate = `Analyze the following meeting notes and extract information in the specified JSON format.

Meeting Notes:
%s

Return ONLY a single JSON object with this exact structure, no prose or markdown fences:
{
  "pm_action_items": [
    {
      "title": "Brief action item title",
      "description": "Detailed description of what needs to be done",
      "owner": "person name or null",
      "priority": "high|medium|low",
      "deadline": "any mentioned deadline or null"
    }
  ],
  "dev_tickets": [
    {
      "title": "Ticket title",
      "description": "Detailed technical description",
      "type": "%s",
      "priority": "high|medium|low",
      "acceptance_criteria": ["criterion 1", "criterion 2"]
    }
  ],
  "summary": {
    "overview": "2-3 sentence meeting summary",
    "key_decisions": ["decision 1", "decision 2"],
    "additional_action_items": [
      {
        "assignee": "person name or 'unassigned'",
        "task": "what needs to be done"
      }
    ],
    "next_steps": ["next step 1", "next step 2"]
  }
}

Only include items that are explicitly mentioned or clearly implied in the notes. If a section has no items, use an empty array.`

// PromptSpec holds the operator-tunable pieces of the extraction prompt.
type PromptSpec struct {
	CompanyContext  string
	RoleDescription string
	SystemOverride  string
	TicketTypes     []string
}

// SystemPrompt builds the system instruction: the base template plus any
// operator-supplied context, or the full override when one is set.
func (s PromptSpec) SystemPrompt() string {
	if s.SystemOverride != "" {
		return s.SystemOverride
	}

	var sb strings.Builder
	sb.WriteString(baseSystemPrompt)
	if s.CompanyContext != "" {
		fmt.Fprintf(&sb, "\n\nCompany Context: %s", s.CompanyContext)
	}
	if s.RoleDescription != "" {
		fmt.Fprintf(&sb, "\n\nPM Role: %s", s.RoleDescription)
	}
	return sb.String()
}

// UserPrompt builds the extraction request around the assembled context.
func (s PromptSpec) UserPrompt(contextText string) string {
	types := s.TicketTypes
	if len(types) == 0 {
		types = []string{"backend", "frontend", "design"}
	}
	return fmt.Sprintf(extractionPromptTemplate, contextText, strings.Join(types, "|"))
}
