package api

import (
	"strings"
	"testing"
	"time"

	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/projects"
)

func TestFromJobSummaryOmitsArtifacts(t *testing.T) {
	finished := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	job := &jobs.Job{
		ID:        "job-1",
		ProjectID: "proj-1",
		Kind:      jobs.KindGenerate,
		Status:    jobs.StatusCompleted,
		Progress: jobs.Progress{
			ChaptersTotal:     4,
			ChaptersCompleted: 4,
			Message:           "Completed",
		},
		DraftMarkdown:   "## Chapter\n\nText.",
		EvidenceMapJSON: `{"chapters":[]}`,
		CreatedAt:       finished.Add(-time.Hour),
		UpdatedAt:       finished,
		FinishedAt:      &finished,
	}

	summary := FromJobSummary(job)
	if summary.Draft != "" || summary.EvidenceMap != nil {
		t.Error("summary should omit heavy artifacts")
	}
	if summary.Progress.Percent != 100 {
		t.Errorf("expected percent 100, got %v", summary.Progress.Percent)
	}
	if summary.FinishedAt == "" || !strings.HasPrefix(summary.FinishedAt, "2026-03-01T10:30:00") {
		t.Errorf("unexpected finished timestamp %q", summary.FinishedAt)
	}

	full := FromJob(job)
	if full.Draft == "" || full.EvidenceMap == nil {
		t.Error("full conversion should include artifacts")
	}
}

func TestFromProjectIncludesArtifacts(t *testing.T) {
	project := &projects.Project{
		ID:            "proj-1",
		Title:         "Webinar",
		ContentMode:   "interview",
		DraftMarkdown: "## Chapter",
		QAReportJSON:  `{"overall_score":80}`,
	}

	summary := FromProjectSummary(project)
	if !summary.HasDraft {
		t.Error("expected hasDraft true")
	}
	if summary.Draft != "" || summary.QAReport != nil {
		t.Error("summary should omit artifacts")
	}

	full := FromProject(project)
	if full.Draft == "" || full.QAReport == nil {
		t.Error("full conversion should include artifacts")
	}
}
