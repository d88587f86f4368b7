package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobProgress captures chapter progress for a job.
type JobProgress struct {
	ChaptersTotal             int     `json:"chaptersTotal"`
	ChaptersCompleted         int     `json:"chaptersCompleted"`
	CurrentChapter            string  `json:"currentChapter,omitempty"`
	Percent                   float64 `json:"percent"`
	Message                   string  `json:"message,omitempty"`
	EstimatedRemainingSeconds int64   `json:"estimatedRemainingSeconds,omitempty"`
}

// Job describes a generation or rewrite job in a transport-friendly format.
// Heavy artifacts (draft, evidence map) are included only by the describe
// converter; list responses carry summaries.
type Job struct {
	ID              string          `json:"id"`
	ProjectID       string          `json:"projectId"`
	Kind            string          `json:"kind"`
	Status          string          `json:"status"`
	Progress        JobProgress     `json:"progress"`
	Warnings        []string        `json:"warnings,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	CancelRequested bool            `json:"cancelRequested,omitempty"`
	Draft           string          `json:"draft,omitempty"`
	EvidenceMap     json.RawMessage `json:"evidenceMap,omitempty"`
	VisualPlan      json.RawMessage `json:"visualPlan,omitempty"`
	GenerationStats json.RawMessage `json:"generationStats,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	CreatedAt       string          `json:"createdAt,omitempty"`
	UpdatedAt       string          `json:"updatedAt,omitempty"`
	FinishedAt      string          `json:"finishedAt,omitempty"`
}

// Project describes a project and its stored artifacts.
type Project struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	ContentMode    string          `json:"contentMode"`
	StrictGrounded bool            `json:"strictGrounded"`
	HasDraft       bool            `json:"hasDraft"`
	Draft          string          `json:"draft,omitempty"`
	EvidenceMap    json.RawMessage `json:"evidenceMap,omitempty"`
	QAReport       json.RawMessage `json:"qaReport,omitempty"`
	VisualPlan     json.RawMessage `json:"visualPlan,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
}

// PhaseHealth mirrors readiness reporting for pipeline phases.
type PhaseHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	JobStats    map[string]int `json:"jobStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJobID   string         `json:"lastJobId,omitempty"`
	PhaseHealth []PhaseHealth  `json:"phaseHealth"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	SocketPath   string         `json:"socketPath"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// ProjectResponse wraps a single project.
type ProjectResponse struct {
	Project Project `json:"project"`
}

// ProjectListResponse wraps a collection of projects.
type ProjectListResponse struct {
	Projects []Project `json:"projects"`
}

// CreateProjectRequest is the payload accepted when registering a project.
type CreateProjectRequest struct {
	Title          string          `json:"title"`
	Transcript     string          `json:"transcript"`
	Outline        json.RawMessage `json:"outline,omitempty"`
	ContentMode    string          `json:"contentMode,omitempty"`
	StrictGrounded bool            `json:"strictGrounded,omitempty"`
}
