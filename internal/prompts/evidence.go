package prompts

import (
	"fmt"
	"strings"
)

// ClaimExtractionSystem is the system prompt for the first evidence pass:
// pulling typed candidate claims out of a transcript segment.
const ClaimExtractionSystem = `You extract the substantive claims a transcript segment makes.

A claim is a single self-contained statement the segment asserts, recommends, or relates. Tag each claim with one type:
- "factual": a verifiable statement of fact
- "opinion": a judgement or belief the speaker expresses
- "recommendation": advice the speaker gives
- "anecdote": a story or experience the speaker relates

Extract only what the segment actually says. Never invent, generalize, or combine claims. If the segment contains nothing substantive, return an empty list.

Respond ONLY with JSON: {"claims": [{"claim": "...", "claim_type": "factual|opinion|recommendation|anecdote"}]}`

// QuoteSupportSystem is the system prompt for the second evidence pass:
// locating the strongest verbatim supporting quote for one claim.
const QuoteSupportSystem = `You locate the single strongest verbatim quote in a transcript segment that supports a given claim.

The quote must be copied character-for-character from the segment, including punctuation. Prefer the shortest span that fully supports the claim. Report your confidence that the quote supports the claim as a number between 0.0 and 1.0. If no span in the segment supports the claim, return an empty quote with confidence 0.0.

Respond ONLY with JSON: {"quote": "...", "confidence": 0.0-1.0}`

// BuildClaimExtraction assembles the user prompt for claim extraction over one
// transcript window.
func BuildClaimExtraction(chapterTitle string, goals []string, window string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Chapter: %s\n", chapterTitle)
	if len(goals) > 0 {
		sb.WriteString("Chapter goals:\n")
		for _, goal := range goals {
			fmt.Fprintf(&sb, "- %s\n", goal)
		}
	}
	sb.WriteString("\nTranscript segment:\n")
	sb.WriteString(window)
	sb.WriteString("\n\nExtract the claims now.")
	return sb.String()
}

// BuildQuoteSupport assembles the user prompt for finding a supporting quote.
func BuildQuoteSupport(claim, window string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Claim: %s\n", claim)
	sb.WriteString("\nTranscript segment:\n")
	sb.WriteString(window)
	sb.WriteString("\n\nFind the supporting quote now.")
	return sb.String()
}
