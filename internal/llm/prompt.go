package llm

import "strings"

// BuildUserContent assembles the user-side prompt for an ai node the same
// way for every provider: optional extra instructions, retrieved context,
// then the user question.
func BuildUserContent(req CompletionRequest) string {
	var b strings.Builder
	if req.ExtraInstructions != "" {
		b.WriteString(req.ExtraInstructions)
		b.WriteString("\n\n")
	}
	b.WriteString("Context:\n")
	b.WriteString(req.Context)
	b.WriteString("\n\nUser Question: ")
	b.WriteString(req.UserInput)
	b.WriteString("\nAnswer:")
	return b.String()
}
