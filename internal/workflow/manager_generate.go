package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"webinar2ebook/internal/evidence"
	"webinar2ebook/internal/generation"
	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/logging"
	"webinar2ebook/internal/projects"
	"webinar2ebook/internal/prompts"
	"webinar2ebook/internal/qa"
	"webinar2ebook/internal/services"
	"webinar2ebook/internal/stage"
)

type phase struct {
	status  jobs.Status
	handler stage.Handler
}

// GenerationResult is the compact summary persisted on a completed
// generation job.
type GenerationResult struct {
	DraftHash     string `json:"draft_hash"`
	ChaptersTotal int    `json:"chapters_total"`
	OverallScore  int    `json:"overall_score,omitempty"`
	WarningCount  int    `json:"warning_count,omitempty"`
}

func (m *Manager) runGenerate(ctx context.Context, logger *slog.Logger, job *jobs.Job) error {
	project, err := m.projects.GetByID(ctx, job.ProjectID)
	if err != nil {
		return m.failJob(ctx, logger, job, err)
	}
	if project == nil {
		return m.failJob(ctx, logger, job,
			services.Wrap(services.ErrNotFound, "workflow", "generate", fmt.Sprintf("project %s not found", job.ProjectID), nil))
	}
	mode, ok := prompts.ParseContentMode(project.ContentMode)
	if !ok {
		return m.failJob(ctx, logger, job,
			services.Wrap(services.ErrValidation, "workflow", "generate", fmt.Sprintf("unknown content mode %q", project.ContentMode), nil))
	}

	phases := []phase{{status: jobs.StatusPlanning, handler: m.planning}}
	if prompts.RequiresGrounding(mode, project.StrictGrounded) {
		phases = append(phases, phase{status: jobs.StatusEvidenceMap, handler: m.evidenceMap})
	}
	phases = append(phases, phase{status: jobs.StatusGenerating, handler: m.generating})

	for _, p := range phases {
		cancelled, err := m.cancelRequested(ctx, job)
		if err != nil {
			return err
		}
		if cancelled {
			return m.cancelJob(ctx, logger, job)
		}

		job.Status = p.status
		job.ErrorMessage = ""
		if err := m.jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("persist phase transition: %w", err)
		}
		logger.Info("phase started", logging.String("phase", string(p.status)))

		if err := p.handler.Prepare(ctx, job); err != nil {
			return m.finishWithError(ctx, logger, job, err)
		}
		if err := p.handler.Execute(ctx, job); err != nil {
			return m.finishWithError(ctx, logger, job, err)
		}
		if err := m.jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("persist phase result: %w", err)
		}
	}

	report := m.analyzeDraft(ctx, logger, job, project, mode)
	return m.completeGeneration(ctx, logger, job, project, report)
}

// analyzeDraft runs the QA pass over the finished draft. Analysis failure
// degrades to a warning; the draft itself is still delivered.
func (m *Manager) analyzeDraft(ctx context.Context, logger *slog.Logger, job *jobs.Job, project *projects.Project, mode prompts.ContentMode) *qa.Report {
	input := qa.Input{
		Draft: job.DraftMarkdown,
		Mode:  mode,
	}
	if plan, err := generation.DecodePlan(job.ChapterPlanJSON); err == nil {
		for _, chapter := range plan.Chapters {
			input.ChapterTitles = append(input.ChapterTitles, chapter.Title)
		}
	}
	if job.EvidenceMapJSON != "" {
		if evidenceMap, err := evidence.Decode(job.EvidenceMapJSON); err == nil {
			input.EvidenceMap = evidenceMap
		}
	}
	if project.QAReportJSON != "" {
		if previous, err := qa.DecodeReport(project.QAReportJSON); err == nil {
			input.Previous = previous
		}
	}

	report, err := m.analyzer.Analyze(ctx, input)
	if err != nil {
		logger.Warn("qa analysis failed, completing without report", logging.Error(err))
		job.AddWarning(fmt.Sprintf("qa analysis failed: %v", err))
		return nil
	}
	return report
}

func (m *Manager) completeGeneration(ctx context.Context, logger *slog.Logger, job *jobs.Job, project *projects.Project, report *qa.Report) error {
	result := GenerationResult{
		DraftHash:     qa.DraftHash(job.DraftMarkdown),
		ChaptersTotal: job.Progress.ChaptersTotal,
		WarningCount:  len(job.Warnings()),
	}
	if report != nil {
		result.OverallScore = report.OverallScore
	}
	encoded, err := json.Marshal(result)
	if err == nil {
		job.ResultJSON = string(encoded)
	}

	now := time.Now().UTC()
	job.Status = jobs.StatusCompleted
	job.FinishedAt = &now
	job.Progress.Message = "Completed"
	if err := m.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist completed job: %w", err)
	}

	// Project artifacts are written once, at completion.
	project.DraftMarkdown = job.DraftMarkdown
	project.EvidenceMapJSON = job.EvidenceMapJSON
	project.VisualPlanJSON = job.VisualPlanJSON
	project.LastRewriteDraftHash = ""
	if report != nil {
		if reportJSON, err := report.Encode(); err == nil {
			project.QAReportJSON = reportJSON
		}
	}
	if err := m.projects.Update(ctx, project); err != nil {
		return fmt.Errorf("persist project artifacts: %w", err)
	}
	return nil
}

// finishWithError resolves a phase error into the job's terminal state.
// Shutdown leaves the job in its processing status for the restart reset.
func (m *Manager) finishWithError(ctx context.Context, logger *slog.Logger, job *jobs.Job, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, services.ErrCancelled) {
		return m.cancelJob(ctx, logger, job)
	}
	return m.failJob(ctx, logger, job, err)
}

func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, job *jobs.Job, cause error) error {
	logger.Error("job failed", logging.Error(cause))
	job.SetFailed(cause.Error())
	if err := m.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist job failure: %w", err)
	}
	m.setLastError(cause)
	return nil
}

// cancelJob marks the job cancelled while keeping the partial draft the
// completed chapters produced.
func (m *Manager) cancelJob(ctx context.Context, logger *slog.Logger, job *jobs.Job) error {
	logger.Info("job cancelled", logging.Int("chapters_completed", job.Progress.ChaptersCompleted))
	job.SetCancelled()
	if err := m.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist job cancellation: %w", err)
	}
	return nil
}

// cancelRequested reloads the job row so cancel requests accepted by the API
// between phases are observed.
func (m *Manager) cancelRequested(ctx context.Context, job *jobs.Job) (bool, error) {
	fresh, err := m.jobs.GetByID(ctx, job.ID)
	if err != nil {
		return false, err
	}
	if fresh == nil {
		return false, services.Wrap(services.ErrNotFound, "workflow", "cancel check", "job disappeared mid-run", nil)
	}
	if fresh.Status == jobs.StatusCancelled {
		job.Status = jobs.StatusCancelled
		return true, nil
	}
	job.CancelRequested = fresh.CancelRequested
	return job.CancelRequested, nil
}
