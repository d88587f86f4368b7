package projects

import (
	"encoding/json"
	"strings"
	"time"
)

// Project holds the source material and accumulated artifacts for one ebook.
type Project struct {
	ID    string
	Title string

	// Transcript is the cleaned webinar transcript the draft is grounded on.
	Transcript string

	// OutlineJSON is the approved chapter outline, when one was supplied.
	OutlineJSON string

	ContentMode    string
	StrictGrounded bool

	// Artifacts from the most recent completed job.
	DraftMarkdown   string
	EvidenceMapJSON string
	QAReportJSON    string
	VisualPlanJSON  string

	// LastRewriteDraftHash guards against repeated rewrite passes over an
	// unchanged draft.
	LastRewriteDraftHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Outline is the chapter plan a draft is generated against.
type Outline struct {
	Chapters []OutlineChapter `json:"chapters"`
}

// OutlineChapter names one planned chapter and the points it should cover.
type OutlineChapter struct {
	Title  string   `json:"title"`
	Points []string `json:"points,omitempty"`
}

// Outline decodes the stored outline. Missing or invalid payloads yield nil.
func (p Project) Outline() *Outline {
	if strings.TrimSpace(p.OutlineJSON) == "" {
		return nil
	}
	var outline Outline
	if err := json.Unmarshal([]byte(p.OutlineJSON), &outline); err != nil {
		return nil
	}
	if len(outline.Chapters) == 0 {
		return nil
	}
	return &outline
}

// HasDraft reports whether a completed draft is stored on the project.
func (p Project) HasDraft() bool {
	return strings.TrimSpace(p.DraftMarkdown) != ""
}

// NewProjectInput collects the fields accepted when creating a project.
type NewProjectInput struct {
	Title          string
	Transcript     string
	OutlineJSON    string
	ContentMode    string
	StrictGrounded bool
}
