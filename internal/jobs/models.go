package jobs

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a generation job.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusPlanning    Status = "planning"
	StatusEvidenceMap Status = "evidence_map"
	StatusGenerating  Status = "generating"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusFailed      Status = "failed"
)

// Kind distinguishes full draft generation from a targeted rewrite pass.
type Kind string

const (
	KindGenerate Kind = "generate"
	KindRewrite  Kind = "rewrite"
)

var allStatuses = []Status{
	StatusQueued,
	StatusPlanning,
	StatusEvidenceMap,
	StatusGenerating,
	StatusCompleted,
	StatusCancelled,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusPlanning:    {},
	StatusEvidenceMap: {},
	StatusGenerating:  {},
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusCancelled: {},
	StatusFailed:    {},
}

// allowedTransitions captures the phase order the workflow manager enforces.
// The evidence_map phase may be skipped for ungrounded modes, and any
// non-terminal state may move to failed or cancelled.
var allowedTransitions = map[Status][]Status{
	StatusQueued:      {StatusPlanning},
	StatusPlanning:    {StatusEvidenceMap, StatusGenerating},
	StatusEvidenceMap: {StatusGenerating},
	StatusGenerating:  {StatusCompleted},
}

// CanTransition reports whether moving from one status to another follows the
// job state machine.
func CanTransition(from, to Status) bool {
	if _, terminal := terminalStatuses[from]; terminal {
		return false
	}
	if to == StatusFailed || to == StatusCancelled {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindGenerate:
		return KindGenerate, true
	case KindRewrite:
		return KindRewrite, true
	default:
		return "", false
	}
}

// Progress captures how far a job has advanced through its chapters.
type Progress struct {
	ChaptersTotal     int    `json:"chapters_total"`
	ChaptersCompleted int    `json:"chapters_completed"`
	CurrentChapter    string `json:"current_chapter,omitempty"`
	Message           string `json:"message,omitempty"`
	// EstimatedRemaining is a rough seconds-remaining figure derived from the
	// average duration of completed chapters.
	EstimatedRemaining int64 `json:"estimated_remaining_seconds,omitempty"`
}

// Percent returns chapter completion as a 0-100 figure.
func (p Progress) Percent() float64 {
	if p.ChaptersTotal <= 0 {
		return 0
	}
	pct := float64(p.ChaptersCompleted) / float64(p.ChaptersTotal) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Job represents a draft-generation or rewrite job persisted in SQLite.
type Job struct {
	ID        string
	ProjectID string
	Kind      Kind
	Status    Status

	Progress Progress

	ChapterPlanJSON     string
	EvidenceMapJSON     string
	DraftMarkdown       string
	VisualPlanJSON      string
	GenerationStatsJSON string
	ResultJSON          string
	WarningsJSON        string
	ErrorMessage        string

	CancelRequested bool

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

// IsProcessing returns true when the status reflects an in-flight phase.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsTerminal returns true once the job can no longer change state.
func (j Job) IsTerminal() bool {
	_, ok := terminalStatuses[j.Status]
	return ok
}

// IsCancellable reports whether a cancel request can still be accepted.
func (j Job) IsCancellable() bool {
	return !j.IsTerminal()
}

// IsTerminalStatus reports whether a status is terminal.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight phase.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// Warnings decodes the accumulated warning list. Invalid or empty payloads
// yield nil.
func (j Job) Warnings() []string {
	if strings.TrimSpace(j.WarningsJSON) == "" {
		return nil
	}
	var warnings []string
	if err := json.Unmarshal([]byte(j.WarningsJSON), &warnings); err != nil {
		return nil
	}
	return warnings
}

// AddWarning appends a warning to the job's persisted warning list.
func (j *Job) AddWarning(warning string) {
	warning = strings.TrimSpace(warning)
	if warning == "" {
		return
	}
	warnings := append(j.Warnings(), warning)
	encoded, err := json.Marshal(warnings)
	if err != nil {
		return
	}
	j.WarningsJSON = string(encoded)
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.Progress.Message = message
	j.FinishedAt = &now
}

// SetCancelled marks the job cancelled, keeping whatever partial draft the
// completed chapters produced.
func (j *Job) SetCancelled() {
	now := time.Now().UTC()
	j.Status = StatusCancelled
	j.Progress.Message = "Cancelled by user"
	j.FinishedAt = &now
}
