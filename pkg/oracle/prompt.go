package oracle

import (
	"fmt"
	"strings"

	"github.com/pichlex/debitor/pkg/domain"
)

// SystemPrompt renders the instructions sent to an LLM provider.
func SystemPrompt(req domain.ClassifyRequest) string {
	var b strings.Builder
	b.WriteString("You are a dialogue router for an accounts-receivable call.\n")
	if req.Task != "" {
		b.WriteString(strings.TrimSpace(req.Task))
		b.WriteString("\n")
	}
	b.WriteString("Decide primarily on the LAST user message; the history is context only.\n")
	fmt.Fprintf(&b, "Set route to exactly one of: %s.\n", strings.Join(req.Allowed, ", "))
	b.WriteString(`Answer with a single JSON object and nothing else: {"route": string, "notes": string, "target_date": "YYYY-MM-DD" or omitted}.` + "\n")
	b.WriteString("notes briefly explains the decision in one or two sentences. target_date is the payment date the user named, if any.")
	return b.String()
}

// LastUserPrompt is appended after the history to single out the message to classify.
func LastUserPrompt(req domain.ClassifyRequest) string {
	return "Last user message (decisive):\n" + req.LastUserText()
}
