package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"webinar2ebook/internal/api"
	"webinar2ebook/internal/logging"
	"webinar2ebook/internal/testsupport"
	"webinar2ebook/internal/workflow"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	jobStore := testsupport.MustOpenJobStore(t, cfg)
	projectStore := testsupport.MustOpenProjectStore(t, cfg)
	manager := workflow.NewManager(cfg, jobStore, projectStore, testsupport.NewFakeLLM("ok"), logging.NewNop())

	d, err := New(cfg, jobStore, projectStore, manager, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestAPIServerProjectLifecycle(t *testing.T) {
	d := newTestDaemon(t)
	srv := d.apiSrv
	if srv == nil {
		t.Fatal("expected api server to be configured")
	}

	body, _ := json.Marshal(api.CreateProjectRequest{
		Title:       "Onboarding Webinar",
		Transcript:  "Welcome everyone. Today we cover onboarding.",
		ContentMode: "essay",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleProjects(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create project: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var created api.ProjectResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Project.ID == "" {
		t.Fatal("expected project id in response")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/projects/"+created.Project.ID+"/generate", nil)
	w = httptest.NewRecorder()
	srv.handleProjectSub(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("generate: expected 202, got %d (%s)", w.Code, w.Body.String())
	}
	var enqueued api.JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &enqueued); err != nil {
		t.Fatalf("decode generate response: %v", err)
	}
	if enqueued.Job.Status != "queued" {
		t.Fatalf("expected queued job, got %q", enqueued.Job.Status)
	}

	// A second enqueue for the same project conflicts while one is active.
	req = httptest.NewRequest(http.MethodPost, "/api/projects/"+created.Project.ID+"/generate", nil)
	w = httptest.NewRecorder()
	srv.handleProjectSub(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate generate: expected 409, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	w = httptest.NewRecorder()
	srv.handleJobs(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list jobs: expected 200, got %d", w.Code)
	}
	var jobList api.JobListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &jobList); err != nil {
		t.Fatalf("decode job list: %v", err)
	}
	if len(jobList.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobList.Jobs))
	}

	req = httptest.NewRequest(http.MethodPost, "/api/jobs/"+enqueued.Job.ID+"/cancel", nil)
	w = httptest.NewRecorder()
	srv.handleJobSub(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("cancel: expected 202, got %d (%s)", w.Code, w.Body.String())
	}
	var cancelled api.JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &cancelled); err != nil {
		t.Fatalf("decode cancel response: %v", err)
	}
	if cancelled.Job.Status != "cancelled" {
		t.Fatalf("expected cancelled job, got %q", cancelled.Job.Status)
	}
}

func TestAPIServerUnknownResourcesReturnNotFound(t *testing.T) {
	d := newTestDaemon(t)
	srv := d.apiSrv

	req := httptest.NewRequest(http.MethodGet, "/api/projects/missing", nil)
	w := httptest.NewRecorder()
	srv.handleProjectSub(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing project, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil)
	w = httptest.NewRecorder()
	srv.handleJobSub(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing job, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/projects/missing/generate", nil)
	w = httptest.NewRecorder()
	srv.handleProjectSub(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 enqueuing for missing project, got %d", w.Code)
	}
}

func TestAPIServerStatus(t *testing.T) {
	d := newTestDaemon(t)
	srv := d.apiSrv

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon was never started; expected running=false")
	}
	if status.DatabasePath == "" || status.SocketPath == "" {
		t.Fatalf("expected paths in status, got %+v", status)
	}
}

func TestAPIServerRejectsWrongMethods(t *testing.T) {
	d := newTestDaemon(t)
	srv := d.apiSrv

	req := httptest.NewRequest(http.MethodDelete, "/api/projects", nil)
	w := httptest.NewRecorder()
	srv.handleProjects(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/status", nil)
	w = httptest.NewRecorder()
	srv.handleStatus(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestNewAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	jobStore := testsupport.MustOpenJobStore(t, cfg)
	projectStore := testsupport.MustOpenProjectStore(t, cfg)
	manager := workflow.NewManager(cfg, jobStore, projectStore, testsupport.NewFakeLLM("ok"), logging.NewNop())

	d, err := New(cfg, jobStore, projectStore, manager, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.apiSrv != nil {
		t.Fatal("expected api server to be nil when bind is empty")
	}
	// Nil receiver start/stop must be safe so the daemon can run headless.
	if err := d.apiSrv.start(context.Background()); err != nil {
		t.Fatalf("nil api server start: %v", err)
	}
	d.apiSrv.stop()
}
