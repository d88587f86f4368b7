package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"webinar2ebook/internal/evidence"
	"webinar2ebook/internal/projects"
	"webinar2ebook/internal/services"
	"webinar2ebook/internal/textutil"
)

// ChapterPlan assigns one outline chapter its transcript range.
type ChapterPlan struct {
	Index    int      `json:"index"`
	Title    string   `json:"title"`
	Goals    []string `json:"goals,omitempty"`
	SegStart int      `json:"seg_start"`
	SegEnd   int      `json:"seg_end"`
}

// Plan is the ordered chapter plan a generation job runs against.
type Plan struct {
	Chapters []ChapterPlan `json:"chapters"`
}

// Encode serializes the plan for persistence on the job.
func (p *Plan) Encode() (string, error) {
	encoded, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode chapter plan: %w", err)
	}
	return string(encoded), nil
}

// DecodePlan parses a persisted chapter plan.
func DecodePlan(raw string) (*Plan, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, services.Wrap(services.ErrValidation, "generation", "decode plan", "chapter plan is empty", nil)
	}
	var p Plan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, services.Wrap(services.ErrValidation, "generation", "decode plan", "chapter plan is not valid JSON", err)
	}
	return &p, nil
}

// EvidenceChapters converts the plan into the extractor's input form.
func (p *Plan) EvidenceChapters() []evidence.Chapter {
	chapters := make([]evidence.Chapter, len(p.Chapters))
	for i, c := range p.Chapters {
		chapters[i] = evidence.Chapter{
			Index:    c.Index,
			Title:    c.Title,
			Goals:    c.Goals,
			SegStart: c.SegStart,
			SegEnd:   c.SegEnd,
		}
	}
	return chapters
}

var titleCaser = cases.Title(language.English, cases.NoLower)

// BuildPlan derives the chapter plan from the project outline. Chapters
// without pinned transcript ranges get proportional splits of the transcript,
// with boundaries pulled to sentence ends.
func BuildPlan(project *projects.Project, searchRadius int) (*Plan, error) {
	if strings.TrimSpace(project.Transcript) == "" {
		return nil, services.Wrap(services.ErrValidation, "generation", "plan", "project has no transcript", nil)
	}
	outline := project.Outline()
	if outline == nil {
		return nil, services.Wrap(services.ErrValidation, "generation", "plan", "project has no outline", nil)
	}

	total := len(project.Transcript)
	count := len(outline.Chapters)
	plan := &Plan{Chapters: make([]ChapterPlan, 0, count)}

	cursor := 0
	for i, chapter := range outline.Chapters {
		title := strings.TrimSpace(chapter.Title)
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		title = titleCaser.String(title)

		end := total * (i + 1) / count
		if i == count-1 {
			end = total
		} else {
			end = textutil.NearestSentenceEnd(project.Transcript, end, searchRadius)
		}
		if end < cursor {
			end = cursor
		}
		plan.Chapters = append(plan.Chapters, ChapterPlan{
			Index:    i,
			Title:    title,
			Goals:    chapter.Points,
			SegStart: cursor,
			SegEnd:   end,
		})
		cursor = end
	}
	return plan, nil
}
