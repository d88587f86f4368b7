package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/evidence"
	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/logging"
	"webinar2ebook/internal/projects"
	"webinar2ebook/internal/qa"
	"webinar2ebook/internal/services/llm"
	"webinar2ebook/internal/testsupport"
)

const managerTranscript = "The first half covers onboarding basics. Early outreach cuts churn in half. " +
	"We walk through account setup in detail. The second half covers retention. " +
	"We discuss churn signals and how to respond to them early."

const managerOutline = `{"chapters":[{"title":"Onboarding Basics"},{"title":"Retention"}]}`

const cleanQAResponse = `{"rubric_scores":{"structure":90,"clarity":85,"faithfulness":88,"repetition":92,"completeness":87},"issues":[]}`

type managerEnv struct {
	cfg      *config.Config
	fake     *testsupport.FakeLLM
	jobs     *jobs.Store
	projects *projects.Store
}

func newManagerEnv(t *testing.T) *managerEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.LLM.MaxRetries = 1
	return &managerEnv{
		cfg:      cfg,
		fake:     testsupport.NewFakeLLM(""),
		jobs:     testsupport.MustOpenJobStore(t, cfg),
		projects: testsupport.MustOpenProjectStore(t, cfg),
	}
}

func (e *managerEnv) manager(client llm.Client) *Manager {
	if client == nil {
		client = e.fake
	}
	return NewManager(e.cfg, e.jobs, e.projects, client, logging.NewNop())
}

func (e *managerEnv) createProject(t *testing.T, mode string) *projects.Project {
	t.Helper()

	project, err := e.projects.Create(context.Background(), projects.NewProjectInput{
		Title:       "Webinar",
		Transcript:  managerTranscript,
		OutlineJSON: managerOutline,
		ContentMode: mode,
	})
	if err != nil {
		t.Fatalf("projects.Create: %v", err)
	}
	return project
}

func (e *managerEnv) scriptGeneration() {
	e.fake.
		Respond("Extract the claims now.", `{"claims":[{"claim":"Early outreach reduces churn","claim_type":"recommendation"}]}`).
		Respond("Find the supporting quote now.", `{"quote":"Early outreach cuts churn in half","confidence":0.9}`).
		Respond("Produce the JSON report now.", cleanQAResponse).
		Respond("Onboarding", "## Onboarding Basics\n\nEarly outreach cuts churn in half, so reach out during setup.").
		Respond("Retention", "## Retention\n\nWatch churn signals weekly and respond early.")
}

func TestManagerCompletesGroundedGeneration(t *testing.T) {
	env := newManagerEnv(t)
	env.scriptGeneration()
	ctx := context.Background()

	project := env.createProject(t, "interview")
	job, err := env.jobs.NewGeneration(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewGeneration: %v", err)
	}

	if err := env.manager(nil).processJob(ctx, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, err := env.jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", stored.Status, stored.ErrorMessage)
	}
	if stored.FinishedAt == nil {
		t.Error("expected finished timestamp")
	}
	if stored.EvidenceMapJSON == "" {
		t.Error("grounded generation should persist an evidence map")
	}
	if !strings.Contains(stored.DraftMarkdown, "## Onboarding Basics") {
		t.Errorf("draft missing first chapter:\n%s", stored.DraftMarkdown)
	}
	if !strings.Contains(stored.ResultJSON, `"draft_hash"`) {
		t.Errorf("expected result summary, got %s", stored.ResultJSON)
	}

	refreshed, err := env.projects.GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("projects.GetByID: %v", err)
	}
	if refreshed.DraftMarkdown != stored.DraftMarkdown {
		t.Error("project draft should match the completed job draft")
	}
	report, err := qa.DecodeReport(refreshed.QAReportJSON)
	if err != nil || report == nil {
		t.Fatalf("expected stored qa report, got err=%v", err)
	}
	if report.DraftHash != qa.DraftHash(stored.DraftMarkdown) {
		t.Error("qa report should be keyed by the completed draft hash")
	}
}

func TestManagerSkipsEvidencePhaseForUngroundedModes(t *testing.T) {
	env := newManagerEnv(t)
	env.fake.
		Respond("Produce the JSON report now.", cleanQAResponse).
		Respond("Onboarding", "## Onboarding Basics\n\nSet up the account first.").
		Respond("Retention", "## Retention\n\nWatch churn weekly.")
	ctx := context.Background()

	project := env.createProject(t, "essay")
	job, err := env.jobs.NewGeneration(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewGeneration: %v", err)
	}

	if err := env.manager(nil).processJob(ctx, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, _ := env.jobs.GetByID(ctx, job.ID)
	if stored.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", stored.Status, stored.ErrorMessage)
	}
	if stored.EvidenceMapJSON != "" {
		t.Error("essay mode should not build an evidence map")
	}
	for _, req := range env.fake.Prompts() {
		if strings.Contains(req.User, "Extract the claims now.") {
			t.Fatal("no claim extraction calls expected for essay mode")
		}
	}
}

func TestManagerFailsJobWhenGenerationExhaustsRetries(t *testing.T) {
	env := newManagerEnv(t)
	env.fake.Fail("Write the chapter now.", testsupport.TransientError("model unavailable"))
	ctx := context.Background()

	project := env.createProject(t, "essay")
	job, err := env.jobs.NewGeneration(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewGeneration: %v", err)
	}

	if err := env.manager(nil).processJob(ctx, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, _ := env.jobs.GetByID(ctx, job.ID)
	if stored.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Error("expected error message on failed job")
	}
}

// hookClient lets a test act between model calls, e.g. to file a cancel
// request while generation is mid-draft.
type hookClient struct {
	inner llm.Client
	hook  func(req llm.Request)
}

func (h *hookClient) Name() string { return h.inner.Name() }

func (h *hookClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	response, err := h.inner.Complete(ctx, req)
	if h.hook != nil {
		h.hook(req)
	}
	return response, err
}

func TestManagerCancelBetweenChaptersKeepsPartialDraft(t *testing.T) {
	env := newManagerEnv(t)
	env.fake.
		Respond("Onboarding", "## Onboarding Basics\n\nSet up the account first.").
		Respond("Retention", "## Retention\n\nWatch churn weekly.")
	ctx := context.Background()

	project := env.createProject(t, "essay")
	job, err := env.jobs.NewGeneration(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewGeneration: %v", err)
	}

	client := &hookClient{inner: env.fake}
	client.hook = func(req llm.Request) {
		if strings.Contains(req.User, "Onboarding") {
			if _, err := env.jobs.RequestCancel(ctx, job.ID); err != nil {
				t.Errorf("RequestCancel: %v", err)
			}
		}
	}

	if err := env.manager(client).processJob(ctx, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, _ := env.jobs.GetByID(ctx, job.ID)
	if stored.Status != jobs.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", stored.Status)
	}
	if !strings.Contains(stored.DraftMarkdown, "## Onboarding Basics") {
		t.Errorf("partial draft should keep completed chapters:\n%s", stored.DraftMarkdown)
	}
	if strings.Contains(stored.DraftMarkdown, "## Retention") {
		t.Errorf("cancelled job should not contain later chapters:\n%s", stored.DraftMarkdown)
	}
	if stored.FinishedAt == nil {
		t.Error("cancelled job should carry a finished timestamp")
	}
}

func rewriteFixture(t *testing.T, env *managerEnv) *projects.Project {
	t.Helper()
	ctx := context.Background()

	project := env.createProject(t, "interview")
	project.DraftMarkdown = "# Guide\n\n## Onboarding Basics\n\nOld text that rambles without direction.\n\n## Retention\n\nChurn signals are discussed here."

	evidenceMap := &evidence.Map{Chapters: []evidence.ChapterEvidence{
		{ChapterIndex: 0, Title: "Onboarding Basics", Entries: []evidence.Entry{{
			Claim:     "Early outreach reduces churn",
			ClaimType: "recommendation",
			Support:   []evidence.Quote{{Text: "Early outreach cuts churn in half", Start: 42, End: 75, Confidence: 0.9}},
		}}},
		{ChapterIndex: 1, Title: "Retention", Skipped: true},
	}}
	encodedMap, err := evidenceMap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	project.EvidenceMapJSON = encodedMap

	report := &qa.Report{
		DraftHash:    qa.DraftHash(project.DraftMarkdown),
		OverallScore: 70,
		Issues: []qa.Issue{{
			Severity:     qa.SeverityWarning,
			IssueType:    "clarity",
			ChapterIndex: 0,
			Heading:      "Onboarding Basics",
			Message:      "section rambles without direction",
			Suggestion:   "tighten around the outreach advice",
		}},
		TotalIssueCount: 1,
		AnalyzedAt:      time.Now().UTC(),
	}
	reportJSON, err := report.Encode()
	if err != nil {
		t.Fatalf("report.Encode: %v", err)
	}
	project.QAReportJSON = reportJSON

	if err := env.projects.Update(ctx, project); err != nil {
		t.Fatalf("projects.Update: %v", err)
	}
	return project
}

func TestManagerRunsRewriteJob(t *testing.T) {
	env := newManagerEnv(t)
	env.fake.
		Respond("Write the replacement section now.",
			"## Onboarding Basics\n\nEarly outreach cuts churn in half, so start outreach during account setup.").
		Respond("Produce the JSON report now.", cleanQAResponse)
	ctx := context.Background()

	project := rewriteFixture(t, env)
	originalDraft := project.DraftMarkdown

	job, err := env.jobs.NewRewrite(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewRewrite: %v", err)
	}
	if err := env.manager(nil).processJob(ctx, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, _ := env.jobs.GetByID(ctx, job.ID)
	if stored.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", stored.Status, stored.ErrorMessage)
	}
	if !strings.Contains(stored.ResultJSON, `"diffs"`) {
		t.Errorf("expected diff summary in result, got %s", stored.ResultJSON)
	}

	refreshed, _ := env.projects.GetByID(ctx, project.ID)
	if refreshed.DraftMarkdown == originalDraft {
		t.Error("rewrite should update the project draft")
	}
	if !strings.Contains(refreshed.DraftMarkdown, "start outreach during account setup") {
		t.Errorf("rewritten section missing:\n%s", refreshed.DraftMarkdown)
	}
	if !strings.Contains(refreshed.DraftMarkdown, "## Retention\n\nChurn signals are discussed here.") {
		t.Errorf("untouched sections must be preserved byte for byte:\n%s", refreshed.DraftMarkdown)
	}
	if refreshed.LastRewriteDraftHash != qa.DraftHash(originalDraft) {
		t.Error("rewrite should record the hash of the draft version it rewrote")
	}
}

func TestManagerRewriteGuardsAgainstSecondPass(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	project := rewriteFixture(t, env)
	project.LastRewriteDraftHash = qa.DraftHash(project.DraftMarkdown)
	if err := env.projects.Update(ctx, project); err != nil {
		t.Fatalf("projects.Update: %v", err)
	}

	job, err := env.jobs.NewRewrite(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewRewrite: %v", err)
	}
	if err := env.manager(nil).processJob(ctx, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, _ := env.jobs.GetByID(ctx, job.ID)
	if stored.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", stored.Status, stored.ErrorMessage)
	}
	var warned bool
	for _, warning := range stored.Warnings() {
		if strings.Contains(warning, "already been rewritten") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("expected multi-pass warning, got %v", stored.Warnings())
	}
	if env.fake.Calls() != 0 {
		t.Errorf("guarded rewrite should make no model calls, got %d", env.fake.Calls())
	}

	refreshed, _ := env.projects.GetByID(ctx, project.ID)
	if refreshed.DraftMarkdown != project.DraftMarkdown {
		t.Error("guarded rewrite must leave the draft unchanged")
	}
}

func TestManagerRewriteRequiresDraftAndReport(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	project := env.createProject(t, "interview")
	job, err := env.jobs.NewRewrite(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewRewrite: %v", err)
	}
	if err := env.manager(nil).processJob(ctx, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, _ := env.jobs.GetByID(ctx, job.ID)
	if stored.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "no draft") {
		t.Errorf("unexpected error message: %s", stored.ErrorMessage)
	}
}

func TestManagerStartDrainsQueue(t *testing.T) {
	env := newManagerEnv(t)
	env.fake.
		Respond("Produce the JSON report now.", cleanQAResponse).
		Respond("Onboarding", "## Onboarding Basics\n\nSet up the account first.").
		Respond("Retention", "## Retention\n\nWatch churn weekly.")
	ctx := context.Background()

	project := env.createProject(t, "essay")
	job, err := env.jobs.NewGeneration(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewGeneration: %v", err)
	}

	manager := env.manager(nil)
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	deadline := time.Now().Add(15 * time.Second)
	for {
		stored, err := env.jobs.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if stored.IsTerminal() {
			if stored.Status != jobs.StatusCompleted {
				t.Fatalf("expected completed, got %s (%s)", stored.Status, stored.ErrorMessage)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish in time, status %s", stored.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}

	if manager.LastJobID() != job.ID {
		t.Errorf("expected last job id %s, got %s", job.ID, manager.LastJobID())
	}
}
