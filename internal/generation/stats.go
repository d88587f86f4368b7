package generation

import (
	"encoding/json"
	"time"
)

// Stats accumulates bookkeeping for one generation run.
type Stats struct {
	ChaptersPlanned   int       `json:"chapters_planned"`
	ChaptersGenerated int       `json:"chapters_generated"`
	ChaptersSkipped   int       `json:"chapters_skipped"`
	ModelCalls        int       `json:"model_calls"`
	ConstraintHits    int       `json:"constraint_hits"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at,omitempty"`
	DurationSeconds   float64   `json:"duration_seconds,omitempty"`
}

// Encode serializes the stats; marshal errors cannot occur for this shape.
func (s *Stats) Encode() string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}

// VisualSuggestion proposes one supporting visual for a chapter.
type VisualSuggestion struct {
	ChapterIndex int    `json:"chapter_index"`
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	Caption      string `json:"caption,omitempty"`
}

// VisualPlan lists the suggested visuals for the draft.
type VisualPlan struct {
	Suggestions []VisualSuggestion `json:"suggestions"`
}

// Encode serializes the visual plan.
func (v *VisualPlan) Encode() string {
	encoded, _ := json.Marshal(v)
	return string(encoded)
}
