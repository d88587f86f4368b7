package projects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/services"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    transcript TEXT NOT NULL,
    outline_json TEXT,
    content_mode TEXT NOT NULL DEFAULT 'essay',
    strict_grounded INTEGER NOT NULL DEFAULT 0,
    draft_markdown TEXT,
    evidence_map_json TEXT,
    qa_report_json TEXT,
    visual_plan_json TEXT,
    last_rewrite_draft_hash TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

// Store manages project persistence backed by SQLite. It shares the database
// file with the job store but owns its own connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the project database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

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

// Create validates the input and inserts a new project.
func (s *Store) Create(ctx context.Context, input NewProjectInput) (*Project, error) {
	if strings.TrimSpace(input.Transcript) == "" {
		return nil, services.Wrap(services.ErrValidation, "projects", "create", "transcript is required", nil)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, services.Wrap(services.ErrValidation, "projects", "create", "title is required", nil)
	}
	if input.OutlineJSON != "" {
		var outline Outline
		if err := json.Unmarshal([]byte(input.OutlineJSON), &outline); err != nil {
			return nil, services.Wrap(services.ErrValidation, "projects", "create", "outline is not valid JSON", err)
		}
	}

	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	mode := strings.ToLower(strings.TrimSpace(input.ContentMode))
	if mode == "" {
		mode = "essay"
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO projects (
            id, title, transcript, outline_json, content_mode, strict_grounded,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		strings.TrimSpace(input.Title),
		input.Transcript,
		nullableString(input.OutlineJSON),
		mode,
		boolToInt(input.StrictGrounded),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a project by identifier. A missing project yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// Update persists changes to an existing project.
func (s *Store) Update(ctx context.Context, project *Project) error {
	if project == nil {
		return errors.New("project is nil")
	}
	project.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE projects
         SET title = ?, transcript = ?, outline_json = ?, content_mode = ?,
             strict_grounded = ?, draft_markdown = ?, evidence_map_json = ?,
             qa_report_json = ?, visual_plan_json = ?, last_rewrite_draft_hash = ?,
             updated_at = ?
         WHERE id = ?`,
		project.Title,
		project.Transcript,
		nullableString(project.OutlineJSON),
		project.ContentMode,
		boolToInt(project.StrictGrounded),
		nullableString(project.DraftMarkdown),
		nullableString(project.EvidenceMapJSON),
		nullableString(project.QAReportJSON),
		nullableString(project.VisualPlanJSON),
		nullableString(project.LastRewriteDraftHash),
		project.UpdatedAt.Format(time.RFC3339Nano),
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// List returns all projects ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var result []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, project)
	}
	return result, rows.Err()
}

// Remove deletes a project by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const projectColumns = "id, title, transcript, outline_json, content_mode, strict_grounded, draft_markdown, evidence_map_json, qa_report_json, visual_plan_json, last_rewrite_draft_hash, created_at, updated_at"

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		id             string
		title          string
		transcript     string
		outline        sql.NullString
		contentMode    string
		strictGrounded sql.NullInt64
		draft          sql.NullString
		evidenceMap    sql.NullString
		qaReport       sql.NullString
		visualPlan     sql.NullString
		rewriteHash    sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&transcript,
		&outline,
		&contentMode,
		&strictGrounded,
		&draft,
		&evidenceMap,
		&qaReport,
		&visualPlan,
		&rewriteHash,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	project := &Project{
		ID:                   id,
		Title:                title,
		Transcript:           transcript,
		OutlineJSON:          outline.String,
		ContentMode:          contentMode,
		DraftMarkdown:        draft.String,
		EvidenceMapJSON:      evidenceMap.String,
		QAReportJSON:         qaReport.String,
		VisualPlanJSON:       visualPlan.String,
		LastRewriteDraftHash: rewriteHash.String,
	}
	if strictGrounded.Valid {
		project.StrictGrounded = strictGrounded.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		project.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		project.UpdatedAt = updated
	}
	return project, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
