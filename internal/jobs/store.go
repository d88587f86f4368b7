package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/services"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas below apply per connection, so keep the pool at one. SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the backing database file.
func (s *Store) Path() string {
	return s.path
}

// NewGeneration enqueues a full draft-generation job for a project. A project
// may have at most one active job; a second request is rejected with a
// conflict error.
func (s *Store) NewGeneration(ctx context.Context, projectID string) (*Job, error) {
	return s.enqueue(ctx, projectID, KindGenerate)
}

// NewRewrite enqueues a targeted rewrite job for a project.
func (s *Store) NewRewrite(ctx context.Context, projectID string) (*Job, error) {
	return s.enqueue(ctx, projectID, KindRewrite)
}

func (s *Store) enqueue(ctx context.Context, projectID string, kind Kind) (*Job, error) {
	if projectID == "" {
		return nil, services.Wrap(services.ErrValidation, "jobs", "enqueue", "project id is required", nil)
	}

	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	// The single-flight check and the insert run as one statement so two
	// concurrent requests cannot both observe "no active job" and insert.
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (id, project_id, kind, status, created_at, updated_at)
         SELECT ?, ?, ?, ?, ?, ?
         WHERE NOT EXISTS (
             SELECT 1 FROM jobs WHERE project_id = ? AND status IN (?, ?, ?, ?)
         )`,
		id,
		projectID,
		string(kind),
		string(StatusQueued),
		timestamp,
		timestamp,
		projectID,
		StatusQueued,
		StatusPlanning,
		StatusEvidenceMap,
		StatusGenerating,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	if inserted == 0 {
		detail := fmt.Sprintf("project %s already has an active job", projectID)
		if active, lookupErr := s.ActiveForProject(ctx, projectID); lookupErr == nil && active != nil {
			detail = fmt.Sprintf("project %s already has an active job %s (%s)", projectID, active.ID, active.Status)
		}
		return nil, services.Wrap(services.ErrConflict, "jobs", "enqueue", detail, nil)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing job yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ActiveForProject returns the project's non-terminal job, if any.
func (s *Store) ActiveForProject(ctx context.Context, projectID string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE project_id = ? AND status IN (?, ?, ?, ?)
         ORDER BY created_at LIMIT 1`,
		projectID,
		StatusQueued,
		StatusPlanning,
		StatusEvidenceMap,
		StatusGenerating,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active for project: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job. The cancel_requested column is
// deliberately left alone so a concurrent RequestCancel is never clobbered by
// a worker persisting progress; only RequestCancel writes the flag.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET project_id = ?, kind = ?, status = ?,
             chapters_total = ?, chapters_completed = ?, current_chapter = ?,
             progress_message = ?, estimated_remaining = ?,
             chapter_plan_json = ?, evidence_map_json = ?, draft_markdown = ?, visual_plan_json = ?,
             generation_stats_json = ?, result_json = ?, warnings_json = ?,
             error_message = ?, updated_at = ?, finished_at = ?
         WHERE id = ?`,
		job.ProjectID,
		string(job.Kind),
		string(job.Status),
		job.Progress.ChaptersTotal,
		job.Progress.ChaptersCompleted,
		nullableString(job.Progress.CurrentChapter),
		nullableString(job.Progress.Message),
		job.Progress.EstimatedRemaining,
		nullableString(job.ChapterPlanJSON),
		nullableString(job.EvidenceMapJSON),
		nullableString(job.DraftMarkdown),
		nullableString(job.VisualPlanJSON),
		nullableString(job.GenerationStatsJSON),
		nullableString(job.ResultJSON),
		nullableString(job.WarningsJSON),
		nullableString(job.ErrorMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.FinishedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// ListForProject returns all jobs that ever ran for a project, newest first.
func (s *Store) ListForProject(ctx context.Context, projectID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE project_id = ? ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list project jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// NextQueued returns the oldest queued job, or nil when the queue is empty.
func (s *Store) NextQueued(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at LIMIT 1`,
		StatusQueued,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued: %w", err)
	}
	return job, nil
}

// RequestCancel flags a job for cooperative cancellation. Queued jobs are
// cancelled immediately; in-flight jobs observe the flag at the next chapter
// boundary. Terminal jobs reject the request.
func (s *Store) RequestCancel(ctx context.Context, id string) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "cancel", fmt.Sprintf("job %s not found", id), nil)
	}
	if job.IsTerminal() {
		return nil, services.Wrap(
			services.ErrConflict,
			"jobs",
			"cancel",
			fmt.Sprintf("job %s is already %s", id, job.Status),
			nil,
		)
	}

	job.CancelRequested = true
	if job.Status == StatusQueued {
		job.SetCancelled()
	}
	job.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET cancel_requested = 1, status = ?, progress_message = ?, updated_at = ?, finished_at = ?
         WHERE id = ?`,
		string(job.Status),
		nullableString(job.Progress.Message),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.FinishedAt),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("request cancel: %w", err)
	}
	return job, nil
}

// ResetStuckProcessing returns jobs left in processing states by a crashed
// daemon back to queued so the workflow manager can pick them up again.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_message = 'Reset after daemon restart',
             current_chapter = NULL, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusPlanning,
		StatusEvidenceMap,
		StatusGenerating,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// ExpireFinished removes terminal jobs whose finish time predates the cutoff.
func (s *Store) ExpireFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM jobs
         WHERE status IN (?, ?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		StatusCompleted,
		StatusCancelled,
		StatusFailed,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("expire finished jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// HealthSummary aggregates job counts for diagnostic output.
type HealthSummary struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Failed     int `json:"failed"`
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusCompleted:
			health.Completed += count
		case StatusCancelled:
			health.Cancelled += count
		case StatusFailed:
			health.Failed += count
		default:
			if IsProcessingStatus(status) {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const jobColumns = "id, project_id, kind, status, chapters_total, chapters_completed, current_chapter, progress_message, estimated_remaining, chapter_plan_json, evidence_map_json, draft_markdown, visual_plan_json, generation_stats_json, result_json, warnings_json, error_message, cancel_requested, created_at, updated_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id                 string
		projectID          string
		kindStr            string
		statusStr          string
		chaptersTotal      int
		chaptersCompleted  int
		currentChapter     sql.NullString
		progressMessage    sql.NullString
		estimatedRemaining sql.NullInt64
		chapterPlan        sql.NullString
		evidenceMap        sql.NullString
		draft              sql.NullString
		visualPlan         sql.NullString
		generationStats    sql.NullString
		result             sql.NullString
		warnings           sql.NullString
		errorMessage       sql.NullString
		cancelRequested    sql.NullInt64
		createdRaw         sql.NullString
		updatedRaw         sql.NullString
		finishedRaw        sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&kindStr,
		&statusStr,
		&chaptersTotal,
		&chaptersCompleted,
		&currentChapter,
		&progressMessage,
		&estimatedRemaining,
		&chapterPlan,
		&evidenceMap,
		&draft,
		&visualPlan,
		&generationStats,
		&result,
		&warnings,
		&errorMessage,
		&cancelRequested,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        id,
		ProjectID: projectID,
		Kind:      Kind(kindStr),
		Status:    Status(statusStr),
		Progress: Progress{
			ChaptersTotal:      chaptersTotal,
			ChaptersCompleted:  chaptersCompleted,
			CurrentChapter:     currentChapter.String,
			Message:            progressMessage.String,
			EstimatedRemaining: estimatedRemaining.Int64,
		},
		ChapterPlanJSON:     chapterPlan.String,
		EvidenceMapJSON:     evidenceMap.String,
		DraftMarkdown:       draft.String,
		VisualPlanJSON:      visualPlan.String,
		GenerationStatsJSON: generationStats.String,
		ResultJSON:          result.String,
		WarningsJSON:        warnings.String,
		ErrorMessage:        errorMessage.String,
	}
	if cancelRequested.Valid {
		job.CancelRequested = cancelRequested.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
