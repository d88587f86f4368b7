// Package constraints scans generated prose for mode-specific forbidden
// patterns. Checks are pure and deterministic so the pattern list can grow
// without touching the job state machine.
package constraints

import (
	"fmt"
	"regexp"

	"webinar2ebook/internal/prompts"
)

// Severity is the QA weight a violation carries when surfaced as an issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Violation records one pattern match in the scanned text.
type Violation struct {
	Class    string   `json:"class"`
	Severity Severity `json:"severity"`
	Match    string   `json:"match"`
	Message  string   `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (matched %q)", v.Class, v.Message, v.Match)
}

// Checker scans chapter text and reports violations.
type Checker interface {
	Check(text string) []Violation
}

// ForMode returns the checker for a content mode. Non-interview modes carry
// no structural constraints.
func ForMode(mode prompts.ContentMode) Checker {
	if mode == prompts.ModeInterview {
		return interviewChecker{}
	}
	return nopChecker{}
}

type nopChecker struct{}

func (nopChecker) Check(string) []Violation { return nil }

// pattern pairs a compiled regex with its class and severity. The list is
// fixed and ordered; every match appends a violation.
type pattern struct {
	class    string
	severity Severity
	message  string
	re       *regexp.Regexp
}

// Interview transcripts must read as the speaker's material, so manufactured
// self-help scaffolding and invented biography are forbidden.
var interviewPatterns = []pattern{
	{
		class:    "forbidden_heading",
		severity: SeverityCritical,
		message:  "manufactured section heading not present in interview material",
		re:       regexp.MustCompile(`(?im)^#{1,6}\s*(action\s+steps|key\s+takeaways|next\s+steps|homework)\b`),
	},
	{
		class:    "prescriptive_steps",
		severity: SeverityCritical,
		message:  "speaker's remarks recast as numbered prescriptive steps",
		re:       regexp.MustCompile(`(?im)^\s*(step\s+\d+[:.]|\d+\.\s+(you\s+(should|must|need\s+to)|start\s+by|make\s+sure))`),
	},
	{
		class:    "canned_platitude",
		severity: SeverityWarning,
		message:  "motivational platitude not grounded in the transcript",
		re:       regexp.MustCompile(`(?i)\b(unlock\s+your\s+(true\s+)?potential|journey\s+of\s+a\s+thousand\s+miles|sky'?s\s+the\s+limit|believe\s+in\s+yourself|success\s+is\s+a\s+journey)\b`),
	},
	{
		class:    "unearned_biography",
		severity: SeverityWarning,
		message:  "biographical framing the transcript does not support",
		re:       regexp.MustCompile(`(?i)\b(renowned|world-?famous|award-?winning|celebrated|legendary)\s+(expert|author|speaker|entrepreneur|coach|leader)\b`),
	},
}

type interviewChecker struct{}

// Check runs the fixed ordered pattern list against the text. Running it
// twice on the same text yields the same violations.
func (interviewChecker) Check(text string) []Violation {
	var violations []Violation
	for _, p := range interviewPatterns {
		for _, match := range p.re.FindAllString(text, -1) {
			violations = append(violations, Violation{
				Class:    p.class,
				Severity: p.severity,
				Match:    match,
				Message:  p.message,
			})
		}
	}
	return violations
}
