package prompts

import (
	"fmt"
	"strings"
)

// QAAnalysisSystem is the system prompt for rubric scoring a finished draft.
const QAAnalysisSystem = `You are a quality reviewer for ebook drafts generated from webinar transcripts.

Score the draft 1-100 on each rubric:
- "structure": logical chapter ordering, heading hierarchy, balanced chapter lengths
- "clarity": readable, unambiguous prose
- "faithfulness": content stays grounded in the source material without invention
- "repetition": freedom from repeated points or phrasing across chapters (100 = no repetition)
- "completeness": all material of the outline is covered

Also list concrete issues. Each issue names a severity ("critical", "warning", or "info"), an issue type, the chapter index (0-based, -1 when document-wide), the heading of the section it occurs in, a short location string, a message, and a suggestion.

Respond ONLY with JSON:
{"rubric_scores": {"structure": 1-100, "clarity": 1-100, "faithfulness": 1-100, "repetition": 1-100, "completeness": 1-100}, "issues": [{"severity": "critical|warning|info", "issue_type": "...", "chapter_index": 0, "heading": "...", "location": "...", "message": "...", "suggestion": "..."}]}`

// BuildQAAnalysis assembles the user prompt for the QA model call.
func BuildQAAnalysis(draft string, chapterTitles []string, evidenceSummary string) string {
	var sb strings.Builder
	if len(chapterTitles) > 0 {
		sb.WriteString("Outline chapters:\n")
		for i, title := range chapterTitles {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, title)
		}
		sb.WriteString("\n")
	}
	if evidenceSummary != "" {
		sb.WriteString("Evidence summary:\n")
		sb.WriteString(evidenceSummary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Draft:\n")
	sb.WriteString(draft)
	sb.WriteString("\n\nProduce the JSON report now.")
	return sb.String()
}
