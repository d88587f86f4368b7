package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/constraints"
	"webinar2ebook/internal/evidence"
	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/logging"
	"webinar2ebook/internal/projects"
	"webinar2ebook/internal/prompts"
	"webinar2ebook/internal/services"
	"webinar2ebook/internal/services/llm"
	"webinar2ebook/internal/stage"
)

// Deps bundles what the generation phase handlers need.
type Deps struct {
	Config   *config.Config
	Client   llm.Client
	Projects *projects.Store
	Jobs     *jobs.Store
	Logger   *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return logging.NewNop()
	}
	return d.Logger
}

// loadProject fetches and validates the job's project.
func (d Deps) loadProject(ctx context.Context, job *jobs.Job) (*projects.Project, prompts.ContentMode, error) {
	project, err := d.Projects.GetByID(ctx, job.ProjectID)
	if err != nil {
		return nil, "", err
	}
	if project == nil {
		return nil, "", services.Wrap(services.ErrNotFound, "generation", "load project", fmt.Sprintf("project %s not found", job.ProjectID), nil)
	}
	if strings.TrimSpace(project.Transcript) == "" {
		return nil, "", services.Wrap(services.ErrValidation, "generation", "load project", "project has no transcript", nil)
	}
	mode, ok := prompts.ParseContentMode(project.ContentMode)
	if !ok {
		return nil, "", services.Wrap(services.ErrValidation, "generation", "load project", fmt.Sprintf("unknown content mode %q", project.ContentMode), nil)
	}
	return project, mode, nil
}

// PlanningHandler builds the chapter plan from the project outline.
type PlanningHandler struct {
	deps Deps
}

// NewPlanningHandler constructs the planning phase handler.
func NewPlanningHandler(deps Deps) *PlanningHandler {
	return &PlanningHandler{deps: deps}
}

func (h *PlanningHandler) Prepare(ctx context.Context, job *jobs.Job) error {
	_, _, err := h.deps.loadProject(ctx, job)
	return err
}

func (h *PlanningHandler) Execute(ctx context.Context, job *jobs.Job) error {
	project, _, err := h.deps.loadProject(ctx, job)
	if err != nil {
		return err
	}
	plan, err := BuildPlan(project, h.deps.Config.Generation.SentenceSearchRadius)
	if err != nil {
		return err
	}
	encoded, err := plan.Encode()
	if err != nil {
		return err
	}
	job.ChapterPlanJSON = encoded
	job.Progress.ChaptersTotal = len(plan.Chapters)
	job.Progress.Message = fmt.Sprintf("Planned %d chapters", len(plan.Chapters))

	h.deps.logger().Info("chapter plan built",
		logging.String("job_id", job.ID),
		logging.Int("chapters", len(plan.Chapters)))
	return nil
}

func (h *PlanningHandler) HealthCheck(ctx context.Context) stage.Health {
	if h.deps.Projects == nil {
		return stage.Unhealthy("planning", "project store unavailable")
	}
	return stage.Healthy("planning")
}

// EvidenceMapHandler runs evidence extraction over the planned chapters.
type EvidenceMapHandler struct {
	deps      Deps
	extractor *evidence.Extractor
}

// NewEvidenceMapHandler constructs the evidence_map phase handler.
func NewEvidenceMapHandler(deps Deps) *EvidenceMapHandler {
	return &EvidenceMapHandler{
		deps:      deps,
		extractor: evidence.NewExtractor(deps.Client, deps.Config, deps.Logger),
	}
}

func (h *EvidenceMapHandler) Prepare(ctx context.Context, job *jobs.Job) error {
	if job.ChapterPlanJSON == "" {
		return services.Wrap(services.ErrValidation, "generation", "evidence map", "job has no chapter plan", nil)
	}
	return nil
}

func (h *EvidenceMapHandler) Execute(ctx context.Context, job *jobs.Job) error {
	project, _, err := h.deps.loadProject(ctx, job)
	if err != nil {
		return err
	}
	plan, err := DecodePlan(job.ChapterPlanJSON)
	if err != nil {
		return err
	}

	evidenceMap, warnings, err := h.extractor.Generate(ctx, project.Transcript, plan.EvidenceChapters())
	if err != nil {
		return err
	}
	encoded, err := evidenceMap.Encode()
	if err != nil {
		return err
	}
	job.EvidenceMapJSON = encoded
	for _, warning := range warnings {
		job.AddWarning(warning)
	}
	job.Progress.Message = "Evidence map built"
	return nil
}

func (h *EvidenceMapHandler) HealthCheck(ctx context.Context) stage.Health {
	if h.deps.Client == nil {
		return stage.Unhealthy("evidence_map", "llm client unavailable")
	}
	return stage.Healthy("evidence_map")
}

// GeneratingHandler writes the chapters in outline order, grounded by the
// evidence map, persisting the partial draft after every chapter.
type GeneratingHandler struct {
	deps Deps
}

// NewGeneratingHandler constructs the generating phase handler.
func NewGeneratingHandler(deps Deps) *GeneratingHandler {
	return &GeneratingHandler{deps: deps}
}

func (h *GeneratingHandler) Prepare(ctx context.Context, job *jobs.Job) error {
	if job.ChapterPlanJSON == "" {
		return services.Wrap(services.ErrValidation, "generation", "generating", "job has no chapter plan", nil)
	}
	return nil
}

func (h *GeneratingHandler) Execute(ctx context.Context, job *jobs.Job) error {
	project, mode, err := h.deps.loadProject(ctx, job)
	if err != nil {
		return err
	}
	plan, err := DecodePlan(job.ChapterPlanJSON)
	if err != nil {
		return err
	}

	grounded := prompts.RequiresGrounding(mode, project.StrictGrounded)
	var evidenceMap *evidence.Map
	if grounded {
		evidenceMap, err = evidence.Decode(job.EvidenceMapJSON)
		if err != nil {
			return err
		}
	}

	checker := constraints.ForMode(mode)
	retry := services.RetryPolicy{
		Attempts: h.deps.Config.LLM.MaxRetries,
		Backoff:  services.DefaultRetryPolicy().Backoff,
		MaxDelay: services.DefaultRetryPolicy().MaxDelay,
	}
	logger := h.deps.logger()

	stats := Stats{
		ChaptersPlanned: len(plan.Chapters),
		StartedAt:       time.Now().UTC(),
	}
	visuals := VisualPlan{}
	var chapterDurations []time.Duration

	for _, chapter := range plan.Chapters {
		// Cancellation is observed at chapter boundaries only; a model call
		// already in flight finishes its chapter first.
		cancelled, err := h.cancelRequested(ctx, job)
		if err != nil {
			return err
		}
		if cancelled {
			return services.Wrap(services.ErrCancelled, "generation", "generating",
				fmt.Sprintf("cancel observed before chapter %d", chapter.Index), nil)
		}

		var chapterEvidence *evidence.ChapterEvidence
		if grounded {
			chapterEvidence = evidenceMap.ForChapter(chapter.Index)
			if chapterEvidence == nil || chapterEvidence.Skipped {
				stats.ChaptersSkipped++
				job.Progress.ChaptersCompleted++
				job.Progress.Message = fmt.Sprintf("Skipped chapter %q (no supporting evidence)", chapter.Title)
				if err := h.deps.Jobs.Update(ctx, job); err != nil {
					return services.Wrap(nil, "generation", "generating", "persist progress", err)
				}
				continue
			}
		}

		started := time.Now()
		job.Progress.CurrentChapter = chapter.Title
		job.Progress.Message = fmt.Sprintf("Generating chapter %d of %d", job.Progress.ChaptersCompleted+1, len(plan.Chapters))

		chapterText, calls, err := h.generateChapter(ctx, retry, mode, grounded, project, chapter, chapterEvidence)
		stats.ModelCalls += calls
		if err != nil {
			return err
		}

		for _, violation := range checker.Check(chapterText) {
			stats.ConstraintHits++
			job.AddWarning(fmt.Sprintf("chapter %d (%s): %s", chapter.Index, chapter.Title, violation))
		}

		if job.DraftMarkdown != "" {
			job.DraftMarkdown += "\n\n"
		}
		job.DraftMarkdown += strings.TrimRight(chapterText, "\n")
		stats.ChaptersGenerated++
		job.Progress.ChaptersCompleted++
		job.Progress.CurrentChapter = ""

		chapterDurations = append(chapterDurations, time.Since(started))
		job.Progress.EstimatedRemaining = estimateRemaining(chapterDurations, len(plan.Chapters)-job.Progress.ChaptersCompleted)

		visuals.Suggestions = append(visuals.Suggestions, VisualSuggestion{
			ChapterIndex: chapter.Index,
			Title:        chapter.Title,
			Kind:         "pull_quote",
		})

		// Persist after every chapter so cancellation and crashes never lose
		// completed chapters.
		if err := h.deps.Jobs.Update(ctx, job); err != nil {
			return services.Wrap(nil, "generation", "generating", "persist progress", err)
		}
		logger.Info("chapter generated",
			logging.String("job_id", job.ID),
			logging.Int("chapter", chapter.Index),
			logging.String("title", chapter.Title))
	}

	stats.FinishedAt = time.Now().UTC()
	stats.DurationSeconds = stats.FinishedAt.Sub(stats.StartedAt).Seconds()
	job.GenerationStatsJSON = stats.Encode()
	job.VisualPlanJSON = visuals.Encode()
	job.Progress.EstimatedRemaining = 0
	job.Progress.Message = "Generation complete"
	return nil
}

func (h *GeneratingHandler) HealthCheck(ctx context.Context) stage.Health {
	if h.deps.Client == nil {
		return stage.Unhealthy("generating", "llm client unavailable")
	}
	return stage.Healthy("generating")
}

// cancelRequested reloads the job row so a flag set by the API between
// chapters is observed.
func (h *GeneratingHandler) cancelRequested(ctx context.Context, job *jobs.Job) (bool, error) {
	if job.CancelRequested {
		return true, nil
	}
	fresh, err := h.deps.Jobs.GetByID(ctx, job.ID)
	if err != nil {
		return false, err
	}
	if fresh == nil {
		return false, services.Wrap(services.ErrNotFound, "generation", "generating", "job disappeared mid-run", nil)
	}
	job.CancelRequested = fresh.CancelRequested
	return job.CancelRequested, nil
}

func (h *GeneratingHandler) generateChapter(
	ctx context.Context,
	retry services.RetryPolicy,
	mode prompts.ContentMode,
	grounded bool,
	project *projects.Project,
	chapter ChapterPlan,
	chapterEvidence *evidence.ChapterEvidence,
) (string, int, error) {
	var items []prompts.EvidenceItem
	segment := ""
	if grounded {
		items = chapterEvidence.PromptItems()
	} else {
		start, end := chapter.SegStart, chapter.SegEnd
		if start < 0 {
			start = 0
		}
		if end > len(project.Transcript) || end <= 0 {
			end = len(project.Transcript)
		}
		segment = project.Transcript[start:end]
	}

	calls := 0
	var raw string
	err := services.Retry(ctx, retry, func(ctx context.Context) error {
		calls++
		var callErr error
		raw, callErr = h.deps.Client.Complete(ctx, llm.Request{
			System:      prompts.BuildChapterSystem(mode, grounded),
			User:        prompts.BuildChapterUser(chapter.Title, chapter.Goals, items, segment),
			MaxTokens:   h.deps.Config.LLM.MaxTokens,
			Temperature: h.deps.Config.LLM.Temperature,
		})
		return callErr
	})
	if err != nil {
		// Chapter generation has no fallback policy; exhaustion fails the job.
		return "", calls, services.Wrap(nil, "generation", "generating",
			fmt.Sprintf("chapter %d (%s) generation failed", chapter.Index, chapter.Title), err)
	}

	text := strings.TrimSpace(llm.StripFences(raw))
	if text == "" {
		return "", calls, services.Wrap(services.ErrExternalTool, "generation", "generating",
			fmt.Sprintf("chapter %d (%s) generation returned empty text", chapter.Index, chapter.Title), nil)
	}
	if !strings.HasPrefix(text, "#") {
		text = fmt.Sprintf("## %s\n\n%s", chapter.Title, text)
	}
	return text, calls, nil
}

func estimateRemaining(durations []time.Duration, remaining int) int64 {
	if len(durations) == 0 || remaining <= 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	avg := total / time.Duration(len(durations))
	return int64((avg * time.Duration(remaining)).Seconds())
}
