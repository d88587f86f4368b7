package jobs

const schemaSQL = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'generate',
    status TEXT NOT NULL DEFAULT 'queued',
    chapters_total INTEGER NOT NULL DEFAULT 0,
    chapters_completed INTEGER NOT NULL DEFAULT 0,
    current_chapter TEXT,
    progress_message TEXT,
    estimated_remaining INTEGER NOT NULL DEFAULT 0,
    chapter_plan_json TEXT,
    evidence_map_json TEXT,
    draft_markdown TEXT,
    visual_plan_json TEXT,
    generation_stats_json TEXT,
    result_json TEXT,
    warnings_json TEXT,
    error_message TEXT,
    cancel_requested INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_project ON jobs(project_id);
CREATE INDEX IF NOT EXISTS idx_jobs_finished ON jobs(finished_at);
`
