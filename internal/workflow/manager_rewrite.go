package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"webinar2ebook/internal/evidence"
	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/logging"
	"webinar2ebook/internal/mdparse"
	"webinar2ebook/internal/prompts"
	"webinar2ebook/internal/qa"
	"webinar2ebook/internal/rewrite"
	"webinar2ebook/internal/services"
)

func (m *Manager) runRewrite(ctx context.Context, logger *slog.Logger, job *jobs.Job) error {
	project, err := m.projects.GetByID(ctx, job.ProjectID)
	if err != nil {
		return m.failJob(ctx, logger, job, err)
	}
	if project == nil {
		return m.failJob(ctx, logger, job,
			services.Wrap(services.ErrNotFound, "workflow", "rewrite", fmt.Sprintf("project %s not found", job.ProjectID), nil))
	}
	mode, ok := prompts.ParseContentMode(project.ContentMode)
	if !ok {
		return m.failJob(ctx, logger, job,
			services.Wrap(services.ErrValidation, "workflow", "rewrite", fmt.Sprintf("unknown content mode %q", project.ContentMode), nil))
	}
	if !project.HasDraft() {
		return m.failJob(ctx, logger, job,
			services.Wrap(services.ErrValidation, "workflow", "rewrite", "project has no draft to rewrite", nil))
	}
	report, err := qa.DecodeReport(project.QAReportJSON)
	if err != nil || report == nil {
		return m.failJob(ctx, logger, job,
			services.Wrap(services.ErrValidation, "workflow", "rewrite", "project has no qa report; rewrite needs analysis issues to target", err))
	}

	job.Status = jobs.StatusPlanning
	if err := m.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist phase transition: %w", err)
	}

	plan := rewrite.NewPlan(project.DraftMarkdown, report.Issues)
	var evidenceMap *evidence.Map
	if project.EvidenceMapJSON != "" {
		if decoded, err := evidence.Decode(project.EvidenceMapJSON); err == nil {
			evidenceMap = decoded
		}
	}

	cancelled, err := m.cancelRequested(ctx, job)
	if err != nil {
		return err
	}
	if cancelled {
		return m.cancelJob(ctx, logger, job)
	}

	job.Status = jobs.StatusGenerating
	job.Progress.ChaptersTotal = len(plan.Sections)
	job.Progress.Message = fmt.Sprintf("Rewriting %d flagged sections", len(plan.Sections))
	if err := m.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist phase transition: %w", err)
	}

	result, err := m.rewriter.Execute(ctx, project.DraftMarkdown, plan, evidenceMap, project.LastRewriteDraftHash)
	if err != nil {
		return m.finishWithError(ctx, logger, job, err)
	}

	if result.MultiPassWarning != "" {
		job.AddWarning(result.MultiPassWarning)
		logger.Info("rewrite skipped", logging.String("reason", result.MultiPassWarning))
	} else if result.NewDraft != "" {
		project.DraftMarkdown = result.NewDraft
		project.LastRewriteDraftHash = plan.DraftHash
		job.DraftMarkdown = result.NewDraft
		job.Progress.ChaptersCompleted = len(result.Diffs)

		if fresh := m.reanalyze(ctx, logger, job, result.NewDraft, mode, evidenceMap); fresh != nil {
			if reportJSON, err := fresh.Encode(); err == nil {
				project.QAReportJSON = reportJSON
			}
		}
		if err := m.projects.Update(ctx, project); err != nil {
			return fmt.Errorf("persist rewritten draft: %w", err)
		}
	}

	for _, sectionErr := range result.SectionErrors {
		job.AddWarning(fmt.Sprintf("section %q kept original text: %s", sectionErr.Heading, sectionErr.Message))
	}

	job.ResultJSON = encodeRewriteResult(result)
	now := time.Now().UTC()
	job.Status = jobs.StatusCompleted
	job.FinishedAt = &now
	job.Progress.Message = "Rewrite complete"
	if err := m.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist completed job: %w", err)
	}
	return nil
}

// reanalyze refreshes the QA report after a rewrite so scores reflect the new
// draft. Failure degrades to a warning and keeps the stale report.
func (m *Manager) reanalyze(ctx context.Context, logger *slog.Logger, job *jobs.Job, draft string, mode prompts.ContentMode, evidenceMap *evidence.Map) *qa.Report {
	var titles []string
	for _, section := range mdparse.Sections(draft) {
		if section.Level == 2 {
			titles = append(titles, section.Heading)
		}
	}
	report, err := m.analyzer.Analyze(ctx, qa.Input{
		Draft:         draft,
		Mode:          mode,
		ChapterTitles: titles,
		EvidenceMap:   evidenceMap,
	})
	if err != nil {
		logger.Warn("post-rewrite qa analysis failed", logging.Error(err))
		job.AddWarning(fmt.Sprintf("post-rewrite qa analysis failed: %v", err))
		return nil
	}
	return report
}

// encodeRewriteResult persists the diff summary without duplicating the full
// draft text, which already lives in its own column.
func encodeRewriteResult(result *rewrite.Result) string {
	trimmed := *result
	trimmed.NewDraft = ""
	encoded, err := json.Marshal(trimmed)
	if err != nil {
		return ""
	}
	return string(encoded)
}
