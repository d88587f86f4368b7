package prompts

import (
	"fmt"
	"strings"
)

// SectionRewriteSystem is the system prompt for regenerating one flagged
// draft section.
const SectionRewriteSystem = `You rewrite one section of an ebook draft to address specific review issues.

Rules:
- Rewrite only the given section. Output the full replacement section.
- Keep the heading line verbatim, including its level.
- Preserve structural markers: list styles and code fences stay as in the original.
- Restrict any new substantive statement to the evidence entries provided. Do not introduce claims absent from the evidence.
- Address every listed issue. Change nothing that no issue asks to change.

Output the replacement section as plain markdown. No commentary.`

// BuildSectionRewrite assembles the user prompt for rewriting one section.
func BuildSectionRewrite(sectionText string, issues []string, evidence []EvidenceItem) string {
	var sb strings.Builder
	sb.WriteString("Original section:\n")
	sb.WriteString(sectionText)
	sb.WriteString("\n\nIssues to address:\n")
	for i, issue := range issues {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, issue)
	}
	if len(evidence) > 0 {
		sb.WriteString("\nEvidence entries you may draw on:\n")
		for i, item := range evidence {
			fmt.Fprintf(&sb, "%d. [%s] %s\n   Quote: %q\n", i+1, item.ClaimType, item.Claim, item.Quote)
		}
	}
	sb.WriteString("\nWrite the replacement section now.")
	return sb.String()
}
