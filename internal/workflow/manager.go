package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"webinar2ebook/internal/config"
	"webinar2ebook/internal/generation"
	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/logging"
	"webinar2ebook/internal/projects"
	"webinar2ebook/internal/qa"
	"webinar2ebook/internal/rewrite"
	"webinar2ebook/internal/services/llm"
	"webinar2ebook/internal/stage"
)

// Manager drains the job queue, driving each job through its phases with the
// registered stage handlers. One job runs at a time; the queue itself
// serializes work across projects.
type Manager struct {
	cfg      *config.Config
	jobs     *jobs.Store
	projects *projects.Store
	client   llm.Client
	logger   *slog.Logger

	pollInterval  time.Duration
	retryInterval time.Duration
	sweepInterval time.Duration

	planning    stage.Handler
	evidenceMap stage.Handler
	generating  stage.Handler
	analyzer    *qa.Analyzer
	rewriter    *rewrite.Rewriter

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastJobID string
}

// NewManager constructs a workflow manager with the standard phase handlers.
func NewManager(cfg *config.Config, jobStore *jobs.Store, projectStore *projects.Store, client llm.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	deps := generation.Deps{
		Config:   cfg,
		Client:   client,
		Projects: projectStore,
		Jobs:     jobStore,
		Logger:   logger,
	}
	return &Manager{
		cfg:           cfg,
		jobs:          jobStore,
		projects:      projectStore,
		client:        client,
		logger:        logger.With(logging.String("component", "workflow")),
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		sweepInterval: time.Duration(cfg.Workflow.SweepInterval) * time.Second,
		planning:      generation.NewPlanningHandler(deps),
		evidenceMap:   generation.NewEvidenceMapHandler(deps),
		generating:    generation.NewGeneratingHandler(deps),
		analyzer:      qa.NewAnalyzer(client, cfg, logger),
		rewriter:      rewrite.NewRewriter(client, cfg, logger),
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(id string) {
	m.mu.Lock()
	m.lastJobID = id
	m.mu.Unlock()
}

// LastError returns the most recent loop error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// LastJobID returns the id of the most recently processed job.
func (m *Manager) LastJobID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastJobID
}

// Running reports whether the background loops are active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Health aggregates phase handler readiness for the status endpoint.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	return []stage.Health{
		m.planning.HealthCheck(ctx),
		m.evidenceMap.HealthCheck(ctx),
		m.generating.HealthCheck(ctx),
	}
}
