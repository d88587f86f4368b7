package rewrite

import (
	"strings"

	"webinar2ebook/internal/mdparse"
	"webinar2ebook/internal/qa"
)

// PlanSection is one draft section scheduled for regeneration together with
// the issues that put it there.
type PlanSection struct {
	Section mdparse.Section
	// ChapterTitle is the heading of the enclosing level-2 chapter, used to
	// scope evidence by title lookup. Empty when the section precedes any
	// chapter. Titles are the key because a skipped chapter leaves no
	// heading in the draft, so ordinals misaddress the evidence map.
	ChapterTitle string
	Issues       []qa.Issue
}

// Plan lists the sections a targeted rewrite will touch. Everything outside
// them is copied through unchanged.
type Plan struct {
	DraftHash string
	Sections  []PlanSection
}

// NewPlan matches QA issues to draft sections. An issue is assigned to a
// section when its location text matches the section heading as a
// case-insensitive substring; issues matching no section are excluded.
func NewPlan(draft string, issues []qa.Issue) *Plan {
	sections := mdparse.Sections(draft)
	plan := &Plan{DraftHash: qa.DraftHash(draft)}

	chapterTitles := make([]string, len(sections))
	currentChapter := ""
	for i, s := range sections {
		if s.Level == 2 {
			currentChapter = s.Heading
		}
		chapterTitles[i] = currentChapter
	}

	for i, section := range sections {
		heading := strings.ToLower(section.Heading)
		if heading == "" {
			continue
		}
		var matched []qa.Issue
		for _, issue := range issues {
			if issueMatchesHeading(issue, heading) {
				matched = append(matched, issue)
			}
		}
		if len(matched) == 0 {
			continue
		}
		plan.Sections = append(plan.Sections, PlanSection{
			Section:      section,
			ChapterTitle: chapterTitles[i],
			Issues:       matched,
		})
	}
	return plan
}

func issueMatchesHeading(issue qa.Issue, heading string) bool {
	for _, candidate := range []string{issue.Location, issue.Heading} {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, heading) || strings.Contains(heading, candidate) {
			return true
		}
	}
	return false
}
