package api

import (
	"context"
	"fmt"
	"strings"

	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/projects"
	"webinar2ebook/internal/services"
)

// ProjectStore abstracts project persistence for the API layer.
type ProjectStore interface {
	Create(ctx context.Context, input projects.NewProjectInput) (*projects.Project, error)
	GetByID(ctx context.Context, id string) (*projects.Project, error)
	List(ctx context.Context) ([]*projects.Project, error)
}

// JobEnqueuer abstracts the enqueue side of the job store.
type JobEnqueuer interface {
	NewGeneration(ctx context.Context, projectID string) (*jobs.Job, error)
	NewRewrite(ctx context.Context, projectID string) (*jobs.Job, error)
}

// ProjectService exposes project registration and job submission.
type ProjectService struct {
	store    ProjectStore
	enqueuer JobEnqueuer
}

// NewProjectService constructs a ProjectService.
func NewProjectService(store ProjectStore, enqueuer JobEnqueuer) *ProjectService {
	if store == nil {
		return nil
	}
	return &ProjectService{store: store, enqueuer: enqueuer}
}

// Create registers a new project from the API payload.
func (s *ProjectService) Create(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	project, err := s.store.Create(ctx, projects.NewProjectInput{
		Title:          strings.TrimSpace(req.Title),
		Transcript:     req.Transcript,
		OutlineJSON:    string(req.Outline),
		ContentMode:    req.ContentMode,
		StrictGrounded: req.StrictGrounded,
	})
	if err != nil {
		return nil, err
	}
	dto := FromProject(project)
	return &dto, nil
}

// Describe fetches a single project with its artifacts.
func (s *ProjectService) Describe(ctx context.Context, id string) (*Project, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	project, err := s.store.GetByID(ctx, id)
	if err != nil || project == nil {
		return nil, err
	}
	dto := FromProject(project)
	return &dto, nil
}

// List returns project summaries.
func (s *ProjectService) List(ctx context.Context) ([]Project, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return FromProjects(items), nil
}

// Generate enqueues a draft-generation job for the project. The store rejects
// a second active job for the same project.
func (s *ProjectService) Generate(ctx context.Context, projectID string) (*Job, error) {
	if s == nil || s.enqueuer == nil {
		return nil, nil
	}
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	job, err := s.enqueuer.NewGeneration(ctx, projectID)
	if err != nil {
		return nil, err
	}
	dto := FromJobSummary(job)
	return &dto, nil
}

// Rewrite enqueues a targeted rewrite job for the project.
func (s *ProjectService) Rewrite(ctx context.Context, projectID string) (*Job, error) {
	if s == nil || s.enqueuer == nil {
		return nil, nil
	}
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	job, err := s.enqueuer.NewRewrite(ctx, projectID)
	if err != nil {
		return nil, err
	}
	dto := FromJobSummary(job)
	return &dto, nil
}

func (s *ProjectService) requireProject(ctx context.Context, projectID string) error {
	project, err := s.store.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return services.Wrap(services.ErrNotFound, "api", "enqueue", fmt.Sprintf("project %s not found", projectID), nil)
	}
	return nil
}
