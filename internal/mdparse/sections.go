// Package mdparse splits a markdown draft into heading-delimited sections.
// A section spans from its heading line to the line before the next heading
// of any level, or end of document.
package mdparse

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Section is one heading-delimited region of a draft. Line numbers are
// 0-based; EndLine is exclusive.
type Section struct {
	ID        int
	Heading   string
	Level     int
	StartLine int
	EndLine   int
}

// Sections parses the draft and returns its heading-delimited sections in
// document order. Headings inside fenced code blocks do not count; goldmark's
// AST only yields real headings.
func Sections(draft string) []Section {
	source := []byte(draft)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	lineStarts := lineOffsets(source)
	totalLines := len(lineStarts)

	var sections []Section
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := heading.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := lines.At(0)
		sections = append(sections, Section{
			ID:      len(sections),
			Heading: strings.TrimSpace(string(heading.Text(source))),
			Level:   heading.Level,
			// Headings are single-line; the segment start maps to its line.
			StartLine: lineForOffset(lineStarts, seg.Start),
		})
		return ast.WalkSkipChildren, nil
	})

	for i := range sections {
		if i+1 < len(sections) {
			sections[i].EndLine = sections[i+1].StartLine
		} else {
			sections[i].EndLine = totalLines
		}
	}
	return sections
}

// SplitLines returns the draft's lines without terminators, preserving exact
// reassembly via JoinLines.
func SplitLines(draft string) []string {
	if draft == "" {
		return nil
	}
	return strings.Split(draft, "\n")
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// SectionText extracts a section's lines from the draft.
func SectionText(lines []string, s Section) string {
	start, end := s.StartLine, s.EndLine
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return JoinLines(lines[start:end])
}

// lineOffsets returns the byte offset of each line start.
func lineOffsets(source []byte) []int {
	offsets := []int{0}
	for i, b := range source {
		if b == '\n' && i+1 < len(source) {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// lineForOffset maps a byte offset to its 0-based line number.
func lineForOffset(lineStarts []int, offset int) int {
	lo, hi := 0, len(lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
