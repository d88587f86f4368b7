package jobaccess

import (
	"context"

	"webinar2ebook/internal/api"
	"webinar2ebook/internal/ipc"
	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/projects"
)

// Access provides project and job operations regardless of IPC or direct
// store backing. CLI commands use it so read paths keep working while the
// daemon is offline.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	ListJobs(ctx context.Context, statuses []string) ([]api.Job, error)
	ListJobsForProject(ctx context.Context, projectID string) ([]api.Job, error)
	DescribeJob(ctx context.Context, id string) (*api.Job, error)
	Cancel(ctx context.Context, id string) (*api.Job, error)
	ListProjects(ctx context.Context) ([]api.Project, error)
	DescribeProject(ctx context.Context, id string) (*api.Project, error)
	AddProject(ctx context.Context, req api.CreateProjectRequest) (*api.Project, error)
	Generate(ctx context.Context, projectID string) (*api.Job, error)
	Rewrite(ctx context.Context, projectID string) (*api.Job, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(jobStore *jobs.Store, projectStore *projects.Store) Access {
	return &storeAccess{
		jobSvc:     api.NewJobService(jobStore),
		projectSvc: api.NewProjectService(projectStore, jobStore),
	}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Stats(context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.JobStats, nil
}

func (a *ipcAccess) ListJobs(_ context.Context, statuses []string) ([]api.Job, error) {
	resp, err := a.client.JobList(ipc.JobListRequest{Statuses: statuses})
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (a *ipcAccess) ListJobsForProject(_ context.Context, projectID string) ([]api.Job, error) {
	resp, err := a.client.JobList(ipc.JobListRequest{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (a *ipcAccess) DescribeJob(_ context.Context, id string) (*api.Job, error) {
	resp, err := a.client.JobDescribe(id)
	if err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

func (a *ipcAccess) Cancel(_ context.Context, id string) (*api.Job, error) {
	resp, err := a.client.Cancel(id)
	if err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

func (a *ipcAccess) ListProjects(context.Context) ([]api.Project, error) {
	resp, err := a.client.ProjectList()
	if err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

func (a *ipcAccess) DescribeProject(_ context.Context, id string) (*api.Project, error) {
	resp, err := a.client.ProjectDescribe(id)
	if err != nil {
		return nil, err
	}
	return &resp.Project, nil
}

func (a *ipcAccess) AddProject(_ context.Context, req api.CreateProjectRequest) (*api.Project, error) {
	resp, err := a.client.ProjectAdd(ipc.ProjectAddRequest{
		Title:          req.Title,
		Transcript:     req.Transcript,
		Outline:        req.Outline,
		ContentMode:    req.ContentMode,
		StrictGrounded: req.StrictGrounded,
	})
	if err != nil {
		return nil, err
	}
	return &resp.Project, nil
}

func (a *ipcAccess) Generate(_ context.Context, projectID string) (*api.Job, error) {
	resp, err := a.client.Generate(projectID)
	if err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

func (a *ipcAccess) Rewrite(_ context.Context, projectID string) (*api.Job, error) {
	resp, err := a.client.Rewrite(projectID)
	if err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

type storeAccess struct {
	jobSvc     *api.JobService
	projectSvc *api.ProjectService
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.jobSvc.Stats(ctx)
}

func (a *storeAccess) ListJobs(ctx context.Context, statusNames []string) ([]api.Job, error) {
	statuses := make([]jobs.Status, 0, len(statusNames))
	for _, name := range statusNames {
		if parsed, ok := jobs.ParseStatus(name); ok {
			statuses = append(statuses, parsed)
		}
	}
	return a.jobSvc.List(ctx, statuses...)
}

func (a *storeAccess) ListJobsForProject(ctx context.Context, projectID string) ([]api.Job, error) {
	return a.jobSvc.ListForProject(ctx, projectID)
}

func (a *storeAccess) DescribeJob(ctx context.Context, id string) (*api.Job, error) {
	return a.jobSvc.Describe(ctx, id)
}

func (a *storeAccess) Cancel(ctx context.Context, id string) (*api.Job, error) {
	return a.jobSvc.Cancel(ctx, id)
}

func (a *storeAccess) ListProjects(ctx context.Context) ([]api.Project, error) {
	return a.projectSvc.List(ctx)
}

func (a *storeAccess) DescribeProject(ctx context.Context, id string) (*api.Project, error) {
	return a.projectSvc.Describe(ctx, id)
}

func (a *storeAccess) AddProject(ctx context.Context, req api.CreateProjectRequest) (*api.Project, error) {
	return a.projectSvc.Create(ctx, req)
}

func (a *storeAccess) Generate(ctx context.Context, projectID string) (*api.Job, error) {
	return a.projectSvc.Generate(ctx, projectID)
}

func (a *storeAccess) Rewrite(ctx context.Context, projectID string) (*api.Job, error) {
	return a.projectSvc.Rewrite(ctx, projectID)
}
