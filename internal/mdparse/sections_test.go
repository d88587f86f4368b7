package mdparse_test

import (
	"testing"

	"webinar2ebook/internal/mdparse"
)

const sampleDraft = `# Title

Intro paragraph.

## Introduction

First section body.
More body.

## Methodology

Second section body.

### Details

Nested details count as their own section.

## Conclusion

Final words.`

func TestSectionsFindsAllHeadings(t *testing.T) {
	sections := mdparse.Sections(sampleDraft)
	want := []struct {
		heading string
		level   int
	}{
		{"Title", 1},
		{"Introduction", 2},
		{"Methodology", 2},
		{"Details", 3},
		{"Conclusion", 2},
	}
	if len(sections) != len(want) {
		t.Fatalf("expected %d sections, got %d: %#v", len(want), len(sections), sections)
	}
	for i, w := range want {
		if sections[i].Heading != w.heading || sections[i].Level != w.level {
			t.Errorf("section %d = (%q, %d), want (%q, %d)", i, sections[i].Heading, sections[i].Level, w.heading, w.level)
		}
		if sections[i].ID != i {
			t.Errorf("section %d has ID %d", i, sections[i].ID)
		}
	}
}

func TestSectionBoundariesCoverWholeBody(t *testing.T) {
	sections := mdparse.Sections(sampleDraft)
	lines := mdparse.SplitLines(sampleDraft)

	for i, s := range sections {
		if s.StartLine >= s.EndLine {
			t.Errorf("section %d has empty range: %d..%d", i, s.StartLine, s.EndLine)
		}
		if i+1 < len(sections) && s.EndLine != sections[i+1].StartLine {
			t.Errorf("section %d ends at %d but next starts at %d", i, s.EndLine, sections[i+1].StartLine)
		}
	}

	// Each section's first line is its heading.
	for _, s := range sections {
		text := mdparse.SectionText(lines, s)
		if text == "" {
			t.Fatalf("empty section text for %q", s.Heading)
		}
		firstLine := mdparse.SplitLines(text)[0]
		if firstLine == "" || firstLine[0] != '#' {
			t.Errorf("section %q does not start with its heading line: %q", s.Heading, firstLine)
		}
	}
}

func TestSectionsIgnoresHeadingsInCodeFences(t *testing.T) {
	draft := "## Real\n\n```\n## Not a heading\n```\n\n## Also Real\n"
	sections := mdparse.Sections(draft)
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d: %#v", len(sections), sections)
	}
	if sections[0].Heading != "Real" || sections[1].Heading != "Also Real" {
		t.Fatalf("unexpected headings: %#v", sections)
	}
}

func TestSplitJoinRoundTrip(t *testing.T) {
	for _, draft := range []string{"", "one line", sampleDraft, "trailing newline\n"} {
		if got := mdparse.JoinLines(mdparse.SplitLines(draft)); got != draft {
			t.Errorf("round trip changed text: %q -> %q", draft, got)
		}
	}
}

func TestNoHeadings(t *testing.T) {
	if got := mdparse.Sections("plain text without headings"); len(got) != 0 {
		t.Fatalf("expected no sections, got %#v", got)
	}
}
