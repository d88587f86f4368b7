package evidence

import "webinar2ebook/internal/textutil"

// Window is one overlapping slice of a chapter segment. Offset is the
// window's start position relative to the segment.
type Window struct {
	Text   string
	Offset int
}

// SplitWindows cuts a segment into overlapping windows of roughly the given
// size. Boundaries are pulled to the nearest sentence end within the search
// radius so a window never cuts mid-sentence when a boundary is near. The
// overlap is sized so a claim spanning a window boundary appears whole in at
// least one window.
func SplitWindows(segment string, size, overlap, radius int) []Window {
	if segment == "" {
		return nil
	}
	if size <= 0 || len(segment) <= size {
		return []Window{{Text: segment, Offset: 0}}
	}
	if overlap >= size {
		overlap = size / 4
	}

	var windows []Window
	start := 0
	for start < len(segment) {
		end := start + size
		if end >= len(segment) {
			windows = append(windows, Window{Text: segment[start:], Offset: start})
			break
		}
		end = textutil.NearestSentenceEnd(segment, end, radius)
		windows = append(windows, Window{Text: segment[start:end], Offset: start})

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return windows
}
