package evidence

import (
	"encoding/json"
	"fmt"
	"strings"

	"webinar2ebook/internal/prompts"
	"webinar2ebook/internal/services"
)

// Quote is a verbatim transcript span supporting a claim. Offsets are
// absolute character positions into the canonical transcript.
type Quote struct {
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Entry pairs one extracted claim with its supporting quotes.
type Entry struct {
	Claim     string  `json:"claim"`
	ClaimType string  `json:"claim_type"`
	Support   []Quote `json:"support"`
}

// ChapterEvidence holds the grounded entries for one outline chapter, or the
// reason the chapter was marked for skip-or-merge.
type ChapterEvidence struct {
	ChapterIndex int     `json:"chapter_index"`
	Title        string  `json:"title"`
	Skipped      bool    `json:"skipped,omitempty"`
	SkipReason   string  `json:"skip_reason,omitempty"`
	Entries      []Entry `json:"entries"`
}

// Map is the full evidence map for one generation job.
type Map struct {
	Chapters []ChapterEvidence `json:"chapters"`
}

// Encode serializes the map for persistence on the job and project.
func (m *Map) Encode() (string, error) {
	encoded, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode evidence map: %w", err)
	}
	return string(encoded), nil
}

// Decode parses a persisted evidence map.
func Decode(raw string) (*Map, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, services.Wrap(services.ErrValidation, "evidence", "decode", "evidence map is empty", nil)
	}
	var m Map
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, services.Wrap(services.ErrValidation, "evidence", "decode", "evidence map is not valid JSON", err)
	}
	return &m, nil
}

// ForChapter returns the chapter's evidence, or nil when the map has none.
func (m *Map) ForChapter(index int) *ChapterEvidence {
	if m == nil {
		return nil
	}
	for i := range m.Chapters {
		if m.Chapters[i].ChapterIndex == index {
			return &m.Chapters[i]
		}
	}
	return nil
}

// ForTitle returns the chapter whose title matches the given draft heading,
// ignoring case and surrounding space. Draft consumers must address the map
// this way rather than by heading ordinal: a skipped chapter leaves no
// heading behind, which shifts every ordinal after it.
func (m *Map) ForTitle(title string) *ChapterEvidence {
	if m == nil {
		return nil
	}
	want := strings.ToLower(strings.TrimSpace(title))
	if want == "" {
		return nil
	}
	for i := range m.Chapters {
		if strings.ToLower(strings.TrimSpace(m.Chapters[i].Title)) == want {
			return &m.Chapters[i]
		}
	}
	return nil
}

// PromptItems converts a chapter's entries into the prompt form. Only the
// strongest quote per entry is surfaced.
func (c *ChapterEvidence) PromptItems() []prompts.EvidenceItem {
	if c == nil {
		return nil
	}
	items := make([]prompts.EvidenceItem, 0, len(c.Entries))
	for _, entry := range c.Entries {
		if len(entry.Support) == 0 {
			continue
		}
		best := entry.Support[0]
		for _, q := range entry.Support[1:] {
			if q.Confidence > best.Confidence {
				best = q
			}
		}
		items = append(items, prompts.EvidenceItem{
			Claim:     entry.Claim,
			ClaimType: entry.ClaimType,
			Quote:     best.Text,
		})
	}
	return items
}

// Validate checks the offset invariant on every quote: the range must index
// back into the transcript to exactly the quoted text. Violating entries are
// removed; the descriptions of what was dropped are returned.
func (m *Map) Validate(transcript string) []string {
	var dropped []string
	for ci := range m.Chapters {
		chapter := &m.Chapters[ci]
		kept := chapter.Entries[:0]
		for _, entry := range chapter.Entries {
			if quoteOffsetsValid(transcript, entry.Support) {
				kept = append(kept, entry)
				continue
			}
			dropped = append(dropped, fmt.Sprintf("chapter %d (%s): dropped entry with invalid quote offsets: %q", chapter.ChapterIndex, chapter.Title, entry.Claim))
		}
		chapter.Entries = kept
	}
	return dropped
}

func quoteOffsetsValid(transcript string, quotes []Quote) bool {
	if len(quotes) == 0 {
		return false
	}
	for _, q := range quotes {
		if q.Start < 0 || q.End > len(transcript) || q.Start >= q.End {
			return false
		}
		if transcript[q.Start:q.End] != q.Text {
			return false
		}
	}
	return true
}
