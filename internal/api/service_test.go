package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"webinar2ebook/internal/services"
	"webinar2ebook/internal/testsupport"
)

func TestProjectServiceCreateAndGenerate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	jobStore := testsupport.MustOpenJobStore(t, cfg)
	projectStore := testsupport.MustOpenProjectStore(t, cfg)
	svc := NewProjectService(projectStore, jobStore)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateProjectRequest{
		Title:       "Webinar",
		Transcript:  "Plenty of transcript text to work with.",
		Outline:     json.RawMessage(`{"chapters":[{"title":"Intro"}]}`),
		ContentMode: "interview",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ContentMode != "interview" {
		t.Errorf("unexpected content mode %q", created.ContentMode)
	}

	job, err := svc.Generate(ctx, created.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if job.Status != "queued" || job.Kind != "generate" {
		t.Errorf("unexpected job %+v", job)
	}

	// Second active job for the same project conflicts.
	if _, err := svc.Generate(ctx, created.ID); !errors.Is(err, services.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	// Unknown projects are rejected before enqueueing.
	if _, err := svc.Generate(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestJobServiceDescribeAndCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	jobStore := testsupport.MustOpenJobStore(t, cfg)
	projectStore := testsupport.MustOpenProjectStore(t, cfg)
	project := testsupport.NewProject(t, projectStore, "Webinar", "transcript text")
	svc := NewJobService(jobStore)
	ctx := context.Background()

	queued, err := jobStore.NewGeneration(ctx, project.ID)
	if err != nil {
		t.Fatalf("NewGeneration: %v", err)
	}

	described, err := svc.Describe(ctx, queued.ID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if described == nil || described.ID != queued.ID {
		t.Fatalf("unexpected describe result %+v", described)
	}

	missing, err := svc.Describe(ctx, "missing")
	if err != nil || missing != nil {
		t.Errorf("missing job should yield nil, nil; got %+v, %v", missing, err)
	}

	cancelled, err := svc.Cancel(ctx, queued.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != "cancelled" {
		t.Errorf("queued job should cancel immediately, got %s", cancelled.Status)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["cancelled"] != 1 {
		t.Errorf("expected one cancelled job in stats, got %v", stats)
	}
}
