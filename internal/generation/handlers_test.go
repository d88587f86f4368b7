package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/evidence"
	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/projects"
	"webinar2ebook/internal/services"
	"webinar2ebook/internal/testsupport"
)

const handlerTranscript = "The first half covers onboarding basics. Early outreach cuts churn in half. " +
	"We walk through account setup in detail. The second half covers retention. " +
	"We discuss churn signals and how to respond to them early."

const twoChapterOutline = `{"chapters":[{"title":"Onboarding Basics","points":["setup"]},{"title":"Retention"}]}`

type handlerEnv struct {
	cfg      *config.Config
	fake     *testsupport.FakeLLM
	projects *projects.Store
	jobs     *jobs.Store
	deps     Deps
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeLLM("")
	jobStore := testsupport.MustOpenJobStore(t, cfg)
	projectStore := testsupport.MustOpenProjectStore(t, cfg)

	return &handlerEnv{
		cfg:      cfg,
		fake:     fake,
		projects: projectStore,
		jobs:     jobStore,
		deps: Deps{
			Config:   cfg,
			Client:   fake,
			Projects: projectStore,
			Jobs:     jobStore,
		},
	}
}

func (e *handlerEnv) newProject(t *testing.T, mode string) *projects.Project {
	t.Helper()

	project, err := e.projects.Create(context.Background(), projects.NewProjectInput{
		Title:       "Webinar",
		Transcript:  handlerTranscript,
		OutlineJSON: twoChapterOutline,
		ContentMode: mode,
	})
	if err != nil {
		t.Fatalf("projects.Create: %v", err)
	}
	return project
}

func (e *handlerEnv) newPlannedJob(t *testing.T, project *projects.Project) *jobs.Job {
	t.Helper()

	ctx := context.Background()
	job, err := e.jobs.NewGeneration(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewGeneration: %v", err)
	}
	if err := NewPlanningHandler(e.deps).Execute(ctx, job); err != nil {
		t.Fatalf("planning Execute: %v", err)
	}
	return job
}

func TestPlanningHandlerBuildsChapterPlan(t *testing.T) {
	env := newHandlerEnv(t)
	project := env.newProject(t, "essay")
	ctx := context.Background()

	job, err := env.jobs.NewGeneration(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewGeneration: %v", err)
	}

	handler := NewPlanningHandler(env.deps)
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if job.ChapterPlanJSON == "" {
		t.Fatal("expected chapter plan on job")
	}
	plan, err := DecodePlan(job.ChapterPlanJSON)
	if err != nil {
		t.Fatalf("DecodePlan: %v", err)
	}
	if len(plan.Chapters) != 2 {
		t.Errorf("expected 2 planned chapters, got %d", len(plan.Chapters))
	}
	if job.Progress.ChaptersTotal != 2 {
		t.Errorf("expected progress total 2, got %d", job.Progress.ChaptersTotal)
	}
}

func TestPlanningHandlerRejectsProjectWithoutOutline(t *testing.T) {
	env := newHandlerEnv(t)
	ctx := context.Background()

	project, err := env.projects.Create(ctx, projects.NewProjectInput{
		Title:      "Webinar",
		Transcript: handlerTranscript,
	})
	if err != nil {
		t.Fatalf("projects.Create: %v", err)
	}
	job, err := env.jobs.NewGeneration(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewGeneration: %v", err)
	}

	err = NewPlanningHandler(env.deps).Execute(ctx, job)
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestEvidenceMapHandlerPopulatesJob(t *testing.T) {
	env := newHandlerEnv(t)
	env.fake.
		Respond("Extract the claims now.", `{"claims":[{"claim":"Early outreach reduces churn","claim_type":"recommendation"}]}`).
		Respond("Find the supporting quote now.", `{"quote":"Early outreach cuts churn in half","confidence":0.9}`)

	project := env.newProject(t, "interview")
	job := env.newPlannedJob(t, project)
	ctx := context.Background()

	handler := NewEvidenceMapHandler(env.deps)
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	evidenceMap, err := evidence.Decode(job.EvidenceMapJSON)
	if err != nil {
		t.Fatalf("evidence.Decode: %v", err)
	}
	first := evidenceMap.ForChapter(0)
	if first == nil || first.Skipped || len(first.Entries) == 0 {
		t.Fatalf("expected grounded evidence for chapter 0, got %+v", first)
	}
	quote := first.Entries[0].Support[0]
	if handlerTranscript[quote.Start:quote.End] != quote.Text {
		t.Errorf("quote offsets do not round-trip: %q", quote.Text)
	}
}

func TestEvidenceMapHandlerRequiresPlan(t *testing.T) {
	env := newHandlerEnv(t)
	err := NewEvidenceMapHandler(env.deps).Prepare(context.Background(), &jobs.Job{})
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGeneratingHandlerWritesChaptersInOrder(t *testing.T) {
	env := newHandlerEnv(t)
	env.fake.
		Respond("Onboarding", "## Onboarding Basics\n\nSet up the account first.").
		Respond("Retention", "## Retention\n\nWatch churn signals weekly.")

	project := env.newProject(t, "essay")
	job := env.newPlannedJob(t, project)
	ctx := context.Background()

	if err := NewGeneratingHandler(env.deps).Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	firstIdx := strings.Index(job.DraftMarkdown, "## Onboarding Basics")
	secondIdx := strings.Index(job.DraftMarkdown, "## Retention")
	if firstIdx < 0 || secondIdx < 0 || secondIdx < firstIdx {
		t.Fatalf("expected both chapters in outline order, got:\n%s", job.DraftMarkdown)
	}
	if job.Progress.ChaptersCompleted != 2 {
		t.Errorf("expected 2 completed chapters, got %d", job.Progress.ChaptersCompleted)
	}
	if job.GenerationStatsJSON == "" || !strings.Contains(job.GenerationStatsJSON, `"chapters_generated":2`) {
		t.Errorf("unexpected generation stats: %s", job.GenerationStatsJSON)
	}
	if job.VisualPlanJSON == "" {
		t.Error("expected a visual plan on the finished job")
	}

	// The partial draft is persisted as chapters complete.
	stored, err := env.jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !strings.Contains(stored.DraftMarkdown, "## Retention") {
		t.Error("expected persisted draft to include generated chapters")
	}
}

func TestGeneratingHandlerSkipsChaptersWithoutEvidence(t *testing.T) {
	env := newHandlerEnv(t)
	env.fake.Respond("Onboarding", "## Onboarding Basics\n\nEarly outreach cuts churn in half, so reach out early.")

	project := env.newProject(t, "interview")
	job := env.newPlannedJob(t, project)
	ctx := context.Background()

	evidenceMap := &evidence.Map{Chapters: []evidence.ChapterEvidence{
		{
			ChapterIndex: 0,
			Title:        "Onboarding Basics",
			Entries: []evidence.Entry{{
				Claim:     "Early outreach reduces churn",
				ClaimType: "recommendation",
				Support: []evidence.Quote{{
					Text:       "Early outreach cuts churn in half",
					Start:      42,
					End:        75,
					Confidence: 0.9,
				}},
			}},
		},
		{ChapterIndex: 1, Title: "Retention", Skipped: true, SkipReason: "no claims extracted"},
	}}
	encoded, err := evidenceMap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	job.EvidenceMapJSON = encoded

	if err := NewGeneratingHandler(env.deps).Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if strings.Contains(job.DraftMarkdown, "## Retention") {
		t.Errorf("skipped chapter should not be generated:\n%s", job.DraftMarkdown)
	}
	if !strings.Contains(job.GenerationStatsJSON, `"chapters_skipped":1`) {
		t.Errorf("expected one skipped chapter in stats: %s", job.GenerationStatsJSON)
	}
	if job.Progress.ChaptersCompleted != 2 {
		t.Errorf("progress should count skipped chapters as processed, got %d", job.Progress.ChaptersCompleted)
	}
}

func TestGeneratingHandlerObservesCancelFlag(t *testing.T) {
	env := newHandlerEnv(t)
	project := env.newProject(t, "essay")
	job := env.newPlannedJob(t, project)
	ctx := context.Background()

	job.Status = jobs.StatusGenerating
	if err := env.jobs.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := env.jobs.RequestCancel(ctx, job.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	// Simulate the manager holding a copy loaded before the cancel arrived.
	job.CancelRequested = false

	err := NewGeneratingHandler(env.deps).Execute(ctx, job)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancelled marker, got %v", err)
	}
	if env.fake.Calls() != 0 {
		t.Errorf("no model calls should run after cancellation, got %d", env.fake.Calls())
	}
}

func TestGeneratingHandlerFailsWhenRetriesExhausted(t *testing.T) {
	env := newHandlerEnv(t)
	env.cfg.LLM.MaxRetries = 1
	env.fake.Fail("Write the chapter now.", testsupport.TransientError("model unavailable"))

	project := env.newProject(t, "essay")
	job := env.newPlannedJob(t, project)

	err := NewGeneratingHandler(env.deps).Execute(context.Background(), job)
	if err == nil {
		t.Fatal("expected generation failure after retry exhaustion")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Errorf("expected wrapped transient cause, got %v", err)
	}
	if env.fake.Calls() != 1 {
		t.Errorf("expected exactly one attempt with MaxRetries=1, got %d", env.fake.Calls())
	}
}

func TestGeneratingHandlerRecordsConstraintWarnings(t *testing.T) {
	env := newHandlerEnv(t)
	env.fake.Respond("Onboarding",
		"## Onboarding Basics\n\nEarly outreach matters.\n\n## Action Steps\n\n1. You should call every customer.")
	env.fake.Respond("Retention", "## Retention\n\nChurn signals show up in usage data.")

	project := env.newProject(t, "interview")
	job := env.newPlannedJob(t, project)

	evidenceMap := &evidence.Map{Chapters: []evidence.ChapterEvidence{
		{ChapterIndex: 0, Title: "Onboarding Basics", Entries: []evidence.Entry{{
			Claim:   "Early outreach reduces churn",
			Support: []evidence.Quote{{Text: "Early outreach cuts churn in half", Start: 42, End: 75, Confidence: 0.9}},
		}}},
		{ChapterIndex: 1, Title: "Retention", Entries: []evidence.Entry{{
			Claim:   "Churn signals appear in usage data",
			Support: []evidence.Quote{{Text: "We discuss churn signals", Start: 0, End: 24, Confidence: 0.8}},
		}}},
	}}
	encoded, err := evidenceMap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	job.EvidenceMapJSON = encoded

	if err := NewGeneratingHandler(env.deps).Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var found bool
	for _, warning := range job.Warnings() {
		if strings.Contains(warning, "forbidden_heading") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a forbidden_heading warning, got %v", job.Warnings())
	}
}
