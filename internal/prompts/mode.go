package prompts

import "strings"

// ContentMode classifies the source material and selects the prompt strategy
// and structural constraints applied to generated prose.
type ContentMode string

const (
	ModeInterview ContentMode = "interview"
	ModeEssay     ContentMode = "essay"
	ModeTutorial  ContentMode = "tutorial"
)

// ParseContentMode converts a string into a known ContentMode.
func ParseContentMode(value string) (ContentMode, bool) {
	switch ContentMode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeInterview:
		return ModeInterview, true
	case ModeEssay:
		return ModeEssay, true
	case ModeTutorial:
		return ModeTutorial, true
	default:
		return "", false
	}
}

// RequiresGrounding reports whether the evidence_map phase runs for this mode.
// Interview transcripts are always grounded; other modes ground only when the
// project demands strict grounding.
func RequiresGrounding(mode ContentMode, strictGrounded bool) bool {
	return mode == ModeInterview || strictGrounded
}

// strategy holds the fixed per-mode prompt fragments. Mode dispatch happens
// here once instead of as conditionals scattered through the builders.
type strategy struct {
	voice       string
	constraints string
}

var strategies = map[ContentMode]strategy{
	ModeInterview: {
		voice: "Write in the speaker's own voice, preserving their perspective and phrasing where natural.",
		constraints: `Constraints for interview material:
- Never add headings such as "Action Steps", "Key Takeaways", or "Next Steps".
- Never recast the speaker's remarks as numbered prescriptive steps.
- Never insert motivational platitudes the speaker did not say.
- Never invent biographical detail about the speaker beyond what the transcript states.`,
	},
	ModeEssay: {
		voice:       "Write as a flowing long-form essay with clear argumentative throughlines.",
		constraints: "Favor connected prose over lists. Use lists only where the source material itself enumerates.",
	},
	ModeTutorial: {
		voice:       "Write as a practical tutorial the reader can follow along with.",
		constraints: "Concrete steps, examples, and short explanations are appropriate. Keep terminology consistent with the source.",
	},
}

func strategyFor(mode ContentMode) strategy {
	if s, ok := strategies[mode]; ok {
		return s
	}
	return strategies[ModeEssay]
}
