package api

import (
	"encoding/json"
	"time"

	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/projects"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func rawJSON(value string) json.RawMessage {
	if value == "" {
		return nil
	}
	return json.RawMessage(value)
}

// FromJobSummary converts a job into its list representation, omitting heavy
// artifact payloads.
func FromJobSummary(job *jobs.Job) Job {
	dto := Job{
		ID:        job.ID,
		ProjectID: job.ProjectID,
		Kind:      string(job.Kind),
		Status:    string(job.Status),
		Progress: JobProgress{
			ChaptersTotal:             job.Progress.ChaptersTotal,
			ChaptersCompleted:         job.Progress.ChaptersCompleted,
			CurrentChapter:            job.Progress.CurrentChapter,
			Percent:                   job.Progress.Percent(),
			Message:                   job.Progress.Message,
			EstimatedRemainingSeconds: job.Progress.EstimatedRemaining,
		},
		Warnings:        job.Warnings(),
		ErrorMessage:    job.ErrorMessage,
		CancelRequested: job.CancelRequested,
		CreatedAt:       formatTime(job.CreatedAt),
		UpdatedAt:       formatTime(job.UpdatedAt),
	}
	if job.FinishedAt != nil {
		dto.FinishedAt = formatTime(*job.FinishedAt)
	}
	return dto
}

// FromJob converts a job into its full representation, artifacts included.
func FromJob(job *jobs.Job) Job {
	dto := FromJobSummary(job)
	dto.Draft = job.DraftMarkdown
	dto.EvidenceMap = rawJSON(job.EvidenceMapJSON)
	dto.VisualPlan = rawJSON(job.VisualPlanJSON)
	dto.GenerationStats = rawJSON(job.GenerationStatsJSON)
	dto.Result = rawJSON(job.ResultJSON)
	return dto
}

// FromJobs converts a slice of jobs into list summaries.
func FromJobs(items []*jobs.Job) []Job {
	dtos := make([]Job, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		dtos = append(dtos, FromJobSummary(item))
	}
	return dtos
}

// FromProjectSummary converts a project into its list representation.
func FromProjectSummary(project *projects.Project) Project {
	return Project{
		ID:             project.ID,
		Title:          project.Title,
		ContentMode:    project.ContentMode,
		StrictGrounded: project.StrictGrounded,
		HasDraft:       project.HasDraft(),
		CreatedAt:      formatTime(project.CreatedAt),
		UpdatedAt:      formatTime(project.UpdatedAt),
	}
}

// FromProject converts a project into its full representation, artifacts
// included.
func FromProject(project *projects.Project) Project {
	dto := FromProjectSummary(project)
	dto.Draft = project.DraftMarkdown
	dto.EvidenceMap = rawJSON(project.EvidenceMapJSON)
	dto.QAReport = rawJSON(project.QAReportJSON)
	dto.VisualPlan = rawJSON(project.VisualPlanJSON)
	return dto
}

// FromProjects converts a slice of projects into list summaries.
func FromProjects(items []*projects.Project) []Project {
	dtos := make([]Project, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		dtos = append(dtos, FromProjectSummary(item))
	}
	return dtos
}
