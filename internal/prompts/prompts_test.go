package prompts_test

import (
	"strings"
	"testing"

	"webinar2ebook/internal/prompts"
)

func TestParseContentMode(t *testing.T) {
	cases := []struct {
		in   string
		want prompts.ContentMode
		ok   bool
	}{
		{"interview", prompts.ModeInterview, true},
		{" Essay ", prompts.ModeEssay, true},
		{"TUTORIAL", prompts.ModeTutorial, true},
		{"podcast", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := prompts.ParseContentMode(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseContentMode(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRequiresGrounding(t *testing.T) {
	if !prompts.RequiresGrounding(prompts.ModeInterview, false) {
		t.Error("interview mode must always ground")
	}
	if prompts.RequiresGrounding(prompts.ModeEssay, false) {
		t.Error("essay mode without strict grounding must not ground")
	}
	if !prompts.RequiresGrounding(prompts.ModeTutorial, true) {
		t.Error("strict grounding must force grounding in any mode")
	}
}

func TestBuildChapterSystemModeDispatch(t *testing.T) {
	interview := prompts.BuildChapterSystem(prompts.ModeInterview, true)
	if !strings.Contains(interview, "Action Steps") {
		t.Error("interview system prompt missing forbidden-heading constraint")
	}
	if !strings.Contains(interview, "Grounding contract") {
		t.Error("grounded system prompt missing grounding contract")
	}

	essay := prompts.BuildChapterSystem(prompts.ModeEssay, false)
	if strings.Contains(essay, "Action Steps") {
		t.Error("essay system prompt should not carry interview constraints")
	}
	if strings.Contains(essay, "Grounding contract") {
		t.Error("ungrounded system prompt should not carry grounding contract")
	}
}

func TestBuildChapterUserScopesEvidence(t *testing.T) {
	got := prompts.BuildChapterUser(
		"Pricing",
		[]string{"cover anchoring"},
		[]prompts.EvidenceItem{{Claim: "Anchoring raises willingness to pay", ClaimType: "factual", Quote: "we saw a 20% lift"}},
		"segment text",
	)
	for _, want := range []string{"Pricing", "cover anchoring", "Anchoring raises willingness to pay", "we saw a 20% lift", "segment text"} {
		if !strings.Contains(got, want) {
			t.Errorf("chapter prompt missing %q", want)
		}
	}
}

func TestBuildSectionRewriteListsIssues(t *testing.T) {
	got := prompts.BuildSectionRewrite("## Intro\n\nText.", []string{"too vague"}, nil)
	if !strings.Contains(got, "## Intro") || !strings.Contains(got, "too vague") {
		t.Fatalf("rewrite prompt missing content: %q", got)
	}
}
