package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/services"
	"webinar2ebook/internal/testsupport"
)

func TestEnqueueAndFetch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewGeneration(ctx, "project-1")
	if err != nil {
		t.Fatalf("NewGeneration failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != jobs.StatusQueued {
		t.Fatalf("expected queued status, got %s", job.Status)
	}
	if job.Kind != jobs.KindGenerate {
		t.Fatalf("expected generate kind, got %s", job.Kind)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.ProjectID != "project-1" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestEnqueueRejectsSecondActiveJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	ctx := context.Background()
	first, err := store.NewGeneration(ctx, "project-1")
	if err != nil {
		t.Fatalf("NewGeneration failed: %v", err)
	}

	if _, err := store.NewGeneration(ctx, "project-1"); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if _, err := store.NewRewrite(ctx, "project-1"); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict error for rewrite, got %v", err)
	}

	// A different project is unaffected.
	if _, err := store.NewGeneration(ctx, "project-2"); err != nil {
		t.Fatalf("NewGeneration for other project failed: %v", err)
	}

	// Once the job finishes, a new one may be enqueued.
	first.Status = jobs.StatusCompleted
	now := time.Now().UTC()
	first.FinishedAt = &now
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := store.NewGeneration(ctx, "project-1"); err != nil {
		t.Fatalf("NewGeneration after completion failed: %v", err)
	}
}

func TestEnqueueSingleFlightUnderConcurrency(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	ctx := context.Background()
	const attempts = 8

	start := make(chan struct{})
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := store.NewGeneration(ctx, "project-1")
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var created, conflicts int
	for err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, services.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected enqueue error: %v", err)
		}
	}
	if created != 1 || conflicts != attempts-1 {
		t.Fatalf("expected exactly one job, got %d created and %d conflicts", created, conflicts)
	}

	queued, err := store.ActiveForProject(ctx, "project-1")
	if err != nil {
		t.Fatalf("ActiveForProject failed: %v", err)
	}
	if queued == nil {
		t.Fatal("expected one queued job to survive")
	}
}

func TestNextQueuedReturnsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	ctx := context.Background()
	first, err := store.NewGeneration(ctx, "project-1")
	if err != nil {
		t.Fatalf("NewGeneration failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := store.NewGeneration(ctx, "project-2"); err != nil {
		t.Fatalf("NewGeneration failed: %v", err)
	}

	next, err := store.NextQueued(ctx)
	if err != nil {
		t.Fatalf("NextQueued failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest job %s, got %#v", first.ID, next)
	}
}

func TestUpdateRoundTripsProgressAndPayloads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewGeneration(ctx, "project-1")
	if err != nil {
		t.Fatalf("NewGeneration failed: %v", err)
	}

	job.Status = jobs.StatusGenerating
	job.Progress = jobs.Progress{
		ChaptersTotal:      8,
		ChaptersCompleted:  3,
		CurrentChapter:     "Pricing Strategy",
		Message:            "Generating chapter 4 of 8",
		EstimatedRemaining: 420,
	}
	job.EvidenceMapJSON = `{"chapters":[]}`
	job.DraftMarkdown = "# Draft\n\nBody."
	job.AddWarning("chapter 2: evidence skipped")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Progress.ChaptersCompleted != 3 || fetched.Progress.ChaptersTotal != 8 {
		t.Fatalf("unexpected progress: %#v", fetched.Progress)
	}
	if fetched.Progress.CurrentChapter != "Pricing Strategy" {
		t.Fatalf("unexpected current chapter: %q", fetched.Progress.CurrentChapter)
	}
	if fetched.Progress.EstimatedRemaining != 420 {
		t.Fatalf("unexpected eta: %d", fetched.Progress.EstimatedRemaining)
	}
	if fetched.DraftMarkdown != "# Draft\n\nBody." {
		t.Fatalf("unexpected draft: %q", fetched.DraftMarkdown)
	}
	warnings := fetched.Warnings()
	if len(warnings) != 1 || warnings[0] != "chapter 2: evidence skipped" {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if got := fetched.Progress.Percent(); got != 37.5 {
		t.Fatalf("unexpected percent: %v", got)
	}
}

func TestRequestCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)
	ctx := context.Background()

	t.Run("queued cancels immediately", func(t *testing.T) {
		job, err := store.NewGeneration(ctx, "project-queued")
		if err != nil {
			t.Fatalf("NewGeneration failed: %v", err)
		}
		cancelled, err := store.RequestCancel(ctx, job.ID)
		if err != nil {
			t.Fatalf("RequestCancel failed: %v", err)
		}
		if cancelled.Status != jobs.StatusCancelled {
			t.Fatalf("expected cancelled, got %s", cancelled.Status)
		}
		if cancelled.FinishedAt == nil {
			t.Fatal("expected finished timestamp")
		}
	})

	t.Run("generating sets flag only", func(t *testing.T) {
		job, err := store.NewGeneration(ctx, "project-generating")
		if err != nil {
			t.Fatalf("NewGeneration failed: %v", err)
		}
		job.Status = jobs.StatusGenerating
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		flagged, err := store.RequestCancel(ctx, job.ID)
		if err != nil {
			t.Fatalf("RequestCancel failed: %v", err)
		}
		if flagged.Status != jobs.StatusGenerating {
			t.Fatalf("expected status unchanged, got %s", flagged.Status)
		}
		if !flagged.CancelRequested {
			t.Fatal("expected cancel flag to be set")
		}
	})

	t.Run("terminal rejects", func(t *testing.T) {
		job, err := store.NewGeneration(ctx, "project-done")
		if err != nil {
			t.Fatalf("NewGeneration failed: %v", err)
		}
		job.Status = jobs.StatusCompleted
		now := time.Now().UTC()
		job.FinishedAt = &now
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if _, err := store.RequestCancel(ctx, job.ID); !errors.Is(err, services.ErrConflict) {
			t.Fatalf("expected conflict error, got %v", err)
		}
	})

	t.Run("missing job", func(t *testing.T) {
		if _, err := store.RequestCancel(ctx, "no-such-job"); !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected not found error, got %v", err)
		}
	})
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)
	ctx := context.Background()

	statuses := []jobs.Status{jobs.StatusPlanning, jobs.StatusEvidenceMap, jobs.StatusGenerating}
	var ids []string
	for i, status := range statuses {
		job, err := store.NewGeneration(ctx, string(rune('a'+i))+"-project")
		if err != nil {
			t.Fatalf("NewGeneration failed: %v", err)
		}
		job.Status = status
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, job.ID)
	}

	reset, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if reset != int64(len(ids)) {
		t.Fatalf("expected %d jobs reset, got %d", len(ids), reset)
	}
	for _, id := range ids {
		job, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job.Status != jobs.StatusQueued {
			t.Fatalf("expected queued after reset, got %s", job.Status)
		}
	}
}

func TestExpireFinished(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)
	ctx := context.Background()

	old, err := store.NewGeneration(ctx, "project-old")
	if err != nil {
		t.Fatalf("NewGeneration failed: %v", err)
	}
	old.Status = jobs.StatusCompleted
	past := time.Now().UTC().Add(-96 * time.Hour)
	old.FinishedAt = &past
	if err := store.Update(ctx, old); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	recent, err := store.NewGeneration(ctx, "project-recent")
	if err != nil {
		t.Fatalf("NewGeneration failed: %v", err)
	}
	recent.Status = jobs.StatusFailed
	now := time.Now().UTC()
	recent.FinishedAt = &now
	if err := store.Update(ctx, recent); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	active, err := store.NewGeneration(ctx, "project-active")
	if err != nil {
		t.Fatalf("NewGeneration failed: %v", err)
	}

	removed, err := store.ExpireFinished(ctx, time.Now().UTC().Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("ExpireFinished failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 job expired, got %d", removed)
	}

	if job, _ := store.GetByID(ctx, old.ID); job != nil {
		t.Fatal("expected old job to be removed")
	}
	if job, _ := store.GetByID(ctx, recent.ID); job == nil {
		t.Fatal("expected recent job to survive")
	}
	if job, _ := store.GetByID(ctx, active.ID); job == nil {
		t.Fatal("expected active job to survive")
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to jobs.Status
		allowed  bool
	}{
		{jobs.StatusQueued, jobs.StatusPlanning, true},
		{jobs.StatusPlanning, jobs.StatusEvidenceMap, true},
		{jobs.StatusPlanning, jobs.StatusGenerating, true},
		{jobs.StatusEvidenceMap, jobs.StatusGenerating, true},
		{jobs.StatusGenerating, jobs.StatusCompleted, true},
		{jobs.StatusGenerating, jobs.StatusCancelled, true},
		{jobs.StatusQueued, jobs.StatusFailed, true},
		{jobs.StatusQueued, jobs.StatusGenerating, false},
		{jobs.StatusCompleted, jobs.StatusQueued, false},
		{jobs.StatusCancelled, jobs.StatusFailed, false},
	}
	for _, tc := range cases {
		if got := jobs.CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestHealthSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)
	ctx := context.Background()

	queued, err := store.NewGeneration(ctx, "p1")
	if err != nil {
		t.Fatalf("NewGeneration failed: %v", err)
	}
	_ = queued

	processing, err := store.NewGeneration(ctx, "p2")
	if err != nil {
		t.Fatalf("NewGeneration failed: %v", err)
	}
	processing.Status = jobs.StatusGenerating
	if err := store.Update(ctx, processing); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Queued != 1 || health.Processing != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}
