package api

import (
	"context"

	"webinar2ebook/internal/jobs"
)

// JobReader abstracts job persistence interactions needed for API queries.
type JobReader interface {
	List(ctx context.Context, statuses ...jobs.Status) ([]*jobs.Job, error)
	ListForProject(ctx context.Context, projectID string) ([]*jobs.Job, error)
	GetByID(ctx context.Context, id string) (*jobs.Job, error)
	RequestCancel(ctx context.Context, id string) (*jobs.Job, error)
	Stats(ctx context.Context) (map[jobs.Status]int, error)
}

// JobService exposes job queue operations returning API DTOs.
type JobService struct {
	store JobReader
}

// NewJobService constructs a JobService around the provided reader.
func NewJobService(store JobReader) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{store: store}
}

// List returns job summaries filtered by status.
func (s *JobService) List(ctx context.Context, statuses ...jobs.Status) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(items), nil
}

// ListForProject returns job summaries for one project, newest first.
func (s *JobService) ListForProject(ctx context.Context, projectID string) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.ListForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return FromJobs(items), nil
}

// Describe fetches a single job with its artifacts.
func (s *JobService) Describe(ctx context.Context, id string) (*Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromJob(item)
	return &dto, nil
}

// Cancel files a cooperative cancel request for a job.
func (s *JobService) Cancel(ctx context.Context, id string) (*Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.RequestCancel(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromJobSummary(item)
	return &dto, nil
}

// Stats returns job counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]int, len(stats))
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged, nil
}
