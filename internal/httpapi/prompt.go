package httpapi

import (
	"fmt"
	"strings"

	"github.com/seqthink/engine/internal/artifact"
	"github.com/seqthink/engine/internal/conversation"
)

// buildSystemPrompt composes the initial context (spec §4.E step 1):
// the operating mode, the pinned artifacts under a labeled section, and
// the formatter instructions, selected from the request rather than
// hard-coded.
func buildSystemPrompt(mode string, pinned []artifact.Artifact) conversation.Message {
	var b strings.Builder

	switch mode {
	case "graph":
		b.WriteString("You are operating in graph-building mode. Prefer tools that extract entities and relationships, and represent structured findings as knowledge-graph artifacts.\n\n")
	default:
		b.WriteString("You are operating in normal mode. Answer the user's request directly, using tools only when they materially improve the answer.\n\n")
	}

	if len(pinned) > 0 {
		b.WriteString("## Pinned context\n\n")
		b.WriteString("The following artifacts were pinned by the user and are provided verbatim for reference:\n\n")
		for _, a := range pinned {
			fmt.Fprintf(&b, "### %s (%s)\n%s\n\n", a.Title, a.Kind, a.Content)
		}
	}

	b.WriteString("## Reply format\n\n")
	b.WriteString("When you are done reasoning and ready to answer, you must call the response_formatter tool exactly once with your final reply. Do not present your final answer as plain text outside that tool call.\n")

	return conversation.Text(conversation.RoleSystem, b.String())
}
