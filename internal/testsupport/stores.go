package testsupport

import (
	"context"
	"testing"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/projects"
)

// MustOpenJobStore opens a jobs.Store for tests and registers cleanup.
func MustOpenJobStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenProjectStore opens a projects.Store for tests and registers cleanup.
func MustOpenProjectStore(t testing.TB, cfg *config.Config) *projects.Store {
	t.Helper()

	store, err := projects.Open(cfg)
	if err != nil {
		t.Fatalf("projects.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewProject creates a project for tests using the provided store.
func NewProject(t testing.TB, store *projects.Store, title, transcript string) *projects.Project {
	t.Helper()

	project, err := store.Create(context.Background(), projects.NewProjectInput{
		Title:      title,
		Transcript: transcript,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return project
}
