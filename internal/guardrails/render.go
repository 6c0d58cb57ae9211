package guardrails

import (
	"fmt"
	"strings"
)

const (
	renderHeader = "\n\n# CUSTOM INSTRUCTIONS AND GUARDRAILS\n\n" +
		"**IMPORTANT: The following question-answer pairs are custom instructions that guide how you should respond to similar questions.**\n\n" +
		"When a user asks a question that is similar to any of the questions below, you MUST respond in the manner specified in the corresponding answer. These instructions override default behavior when applicable.\n\n"

	renderFooter = "**Remember:** Use these instructions as a guide. When a user's question is similar to any of the questions above, adapt your response to match the style and content of the corresponding answer, while still being natural and conversational.\n\n" +
		"# END OF CUSTOM INSTRUCTIONS AND GUARDRAILS\n"
)

// Render projects the store into an instruction block for the system
// instruction. It returns "" when the store is empty.
func (s *Store) Render() string {
	entries := s.List()
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(renderHeader)
	for _, g := range entries {
		fmt.Fprintf(&b, "## Instruction %d\n\n", g.Index+1)
		fmt.Fprintf(&b, "**When asked (or similar to):** %s\n\n", g.Question)
		fmt.Fprintf(&b, "**You should respond like this:** %s\n\n", g.Answer)
	}
	b.WriteString(renderFooter)
	return b.String()
}
