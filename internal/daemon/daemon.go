package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"webinar2ebook/internal/api"
	"webinar2ebook/internal/config"
	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/logging"
	"webinar2ebook/internal/projects"
	"webinar2ebook/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution via a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	jobStore *jobs.Store
	projects *projects.Store
	workflow *workflow.Manager

	jobSvc     *api.JobService
	projectSvc *api.ProjectService

	lockPath string
	lock     *flock.Flock

	apiSrv *apiServer

	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	SocketPath   string
	Workflow     api.WorkflowStatus
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, jobStore *jobs.Store, projectStore *projects.Store, wf *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || jobStore == nil || projectStore == nil || wf == nil {
		return nil, errors.New("daemon requires config, stores, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "w2ed.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger.With(logging.String("component", "daemon")),
		jobStore:   jobStore,
		projects:   projectStore,
		workflow:   wf,
		jobSvc:     api.NewJobService(jobStore),
		projectSvc: api.NewProjectService(projectStore, jobStore),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		done:       make(chan struct{}),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiSrv = srv
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted jobs, and launches the
// workflow manager and HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another webinar2ebook daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	// Jobs left in a processing state by a crash return to the queue.
	reset, err := d.jobStore.ResetStuckProcessing(d.ctx)
	if err != nil {
		d.releaseOnStartFailure()
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	if reset > 0 {
		d.logger.Info("requeued interrupted jobs", logging.Int64("count", reset))
	}

	if err := d.workflow.Start(d.ctx); err != nil {
		d.releaseOnStartFailure()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.apiSrv.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.releaseOnStartFailure()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseOnStartFailure() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiSrv.stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.stopOnce.Do(func() { close(d.done) })
	d.logger.Info("daemon stopped")
}

// Done is closed after the daemon has fully stopped, letting the host
// process exit when a stop request arrives over IPC.
func (d *Daemon) Done() <-chan struct{} { return d.done }

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if d.jobStore != nil {
		firstErr = d.jobStore.Close()
	}
	if d.projects != nil {
		if err := d.projects.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Jobs exposes job queue operations for IPC and HTTP consumers.
func (d *Daemon) Jobs() *api.JobService { return d.jobSvc }

// Projects exposes project operations for IPC and HTTP consumers.
func (d *Daemon) Projects() *api.ProjectService { return d.projectSvc }

// LogPath returns the daemon log file used by tail requests.
func (d *Daemon) LogPath() string { return d.cfg.LogFilePath() }

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	workflowStatus := api.WorkflowStatus{
		Running:   d.workflow.Running(),
		LastJobID: d.workflow.LastJobID(),
	}
	if err := d.workflow.LastError(); err != nil {
		workflowStatus.LastError = err.Error()
	}
	if stats, err := d.jobSvc.Stats(ctx); err == nil {
		workflowStatus.JobStats = stats
	}
	for _, health := range d.workflow.Health(ctx) {
		workflowStatus.PhaseHealth = append(workflowStatus.PhaseHealth, api.PhaseHealth{
			Name:   health.Name,
			Ready:  health.Ready,
			Detail: health.Detail,
		})
	}

	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		Workflow:     workflowStatus,
	}
}
