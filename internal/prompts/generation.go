package prompts

import (
	"fmt"
	"strings"
)

// EvidenceItem is the claim/quote pair a generation prompt may draw on. Only
// the owning chapter's items are ever included in a prompt.
type EvidenceItem struct {
	Claim     string
	ClaimType string
	Quote     string
}

// BuildChapterSystem assembles the mode-specific system prompt for generating
// one chapter.
func BuildChapterSystem(mode ContentMode, grounded bool) string {
	s := strategyFor(mode)
	var sb strings.Builder
	sb.WriteString("You write one chapter of an ebook drafted from a webinar transcript.\n\n")
	sb.WriteString(s.voice)
	sb.WriteString("\n\n")
	sb.WriteString(s.constraints)
	sb.WriteString("\n\n")
	if grounded {
		sb.WriteString("Grounding contract: every substantive statement in the chapter must trace to one of the evidence entries provided. Do not introduce claims, statistics, names, or events that are absent from the evidence.\n\n")
	}
	sb.WriteString("Output plain markdown for the chapter body only. Start with a level-2 heading bearing the chapter title. Do not add front matter, chapter numbers, or commentary.")
	return sb.String()
}

// BuildChapterUser assembles the user prompt for one chapter.
func BuildChapterUser(title string, goals []string, evidence []EvidenceItem, segment string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Chapter title: %s\n", title)
	if len(goals) > 0 {
		sb.WriteString("Chapter goals:\n")
		for _, goal := range goals {
			fmt.Fprintf(&sb, "- %s\n", goal)
		}
	}
	if len(evidence) > 0 {
		sb.WriteString("\nEvidence entries for this chapter (claims with verbatim transcript support):\n")
		for i, item := range evidence {
			fmt.Fprintf(&sb, "%d. [%s] %s\n   Quote: %q\n", i+1, item.ClaimType, item.Claim, item.Quote)
		}
	}
	if segment != "" {
		sb.WriteString("\nTranscript segment for reference:\n")
		sb.WriteString(segment)
	}
	sb.WriteString("\n\nWrite the chapter now.")
	return sb.String()
}
