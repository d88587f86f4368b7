package ipc

import (
	"encoding/json"

	"webinar2ebook/internal/api"
)

// Job mirrors the HTTP API job DTO for internal IPC callers.
type Job = api.Job

// Project mirrors the HTTP API project DTO for internal IPC callers.
type Project = api.Project

// PhaseHealth describes readiness of a generation phase.
type PhaseHealth = api.PhaseHealth

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"database_path"`
	LockPath     string         `json:"lock_path"`
	SocketPath   string         `json:"socket_path"`
	JobStats     map[string]int `json:"job_stats"`
	LastError    string         `json:"last_error"`
	LastJobID    string         `json:"last_job_id"`
	PhaseHealth  []PhaseHealth  `json:"phase_health"`
}

// ProjectAddRequest creates a project from transcript material.
type ProjectAddRequest struct {
	Title          string          `json:"title"`
	Transcript     string          `json:"transcript"`
	Outline        json.RawMessage `json:"outline,omitempty"`
	ContentMode    string          `json:"content_mode"`
	StrictGrounded bool            `json:"strict_grounded"`
}

// ProjectAddResponse returns the created project.
type ProjectAddResponse struct {
	Project Project `json:"project"`
}

// ProjectListRequest lists all projects.
type ProjectListRequest struct{}

// ProjectListResponse contains project summaries.
type ProjectListResponse struct {
	Projects []Project `json:"projects"`
}

// ProjectDescribeRequest fetches a single project with its artifacts.
type ProjectDescribeRequest struct {
	ID string `json:"id"`
}

// ProjectDescribeResponse contains a single project.
type ProjectDescribeResponse struct {
	Project Project `json:"project"`
}

// GenerateRequest enqueues a draft generation job for a project.
type GenerateRequest struct {
	ProjectID string `json:"project_id"`
}

// GenerateResponse returns the enqueued job.
type GenerateResponse struct {
	Job Job `json:"job"`
}

// RewriteRequest enqueues a targeted rewrite job for a project.
type RewriteRequest struct {
	ProjectID string `json:"project_id"`
}

// RewriteResponse returns the enqueued job.
type RewriteResponse struct {
	Job Job `json:"job"`
}

// JobListRequest filters job listing by status.
type JobListRequest struct {
	Statuses  []string `json:"statuses"`
	ProjectID string   `json:"project_id,omitempty"`
}

// JobListResponse contains job summaries.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobDescribeRequest fetches a single job with its artifacts.
type JobDescribeRequest struct {
	ID string `json:"id"`
}

// JobDescribeResponse contains a single job.
type JobDescribeResponse struct {
	Job Job `json:"job"`
}

// CancelRequest requests cooperative cancellation of a job.
type CancelRequest struct {
	ID string `json:"id"`
}

// CancelResponse returns the job after the cancel request was recorded.
type CancelResponse struct {
	Job Job `json:"job"`
}

// QAReportRequest fetches the stored QA report for a project.
type QAReportRequest struct {
	ProjectID string `json:"project_id"`
}

// QAReportResponse carries the raw QA report JSON.
type QAReportResponse struct {
	Report json.RawMessage `json:"report"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
