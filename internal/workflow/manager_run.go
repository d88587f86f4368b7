package workflow

import (
	"context"
	"errors"
	"time"

	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/logging"
)

// Start begins background queue processing and the retention sweep.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(2)
	m.mu.Unlock()

	go m.runQueue(runCtx)
	go m.runSweep(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runQueue(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.jobs.NextQueued(ctx)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to fetch next queued job", logging.Error(err))
			m.waitOrShutdown(ctx, m.retryInterval)
			continue
		}
		if job == nil {
			m.waitOrShutdown(ctx, m.pollInterval)
			continue
		}

		if err := m.processJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
		}
	}
}

// runSweep removes finished jobs older than the retention window.
func (m *Manager) runSweep(ctx context.Context) {
	defer m.wg.Done()

	interval := m.sweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cutoff := time.Now().UTC().Add(-time.Duration(m.cfg.Generation.JobTTLHours) * time.Hour)
		removed, err := m.jobs.ExpireFinished(ctx, cutoff)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Warn("retention sweep failed", logging.Error(err))
			continue
		}
		if removed > 0 {
			m.logger.Info("expired finished jobs", logging.Int64("removed", removed))
		}
	}
}

func (m *Manager) processJob(ctx context.Context, job *jobs.Job) error {
	logger := m.logger.With(
		logging.String("job_id", job.ID),
		logging.String("project_id", job.ProjectID),
		logging.String("kind", string(job.Kind)),
	)
	m.setLastJob(job.ID)

	started := time.Now()
	logger.Info("job started")

	var err error
	switch job.Kind {
	case jobs.KindRewrite:
		err = m.runRewrite(ctx, logger, job)
	default:
		err = m.runGenerate(ctx, logger, job)
	}
	if err != nil {
		return err
	}

	logger.Info("job finished",
		logging.String("status", string(job.Status)),
		logging.Duration("duration", time.Since(started)))
	return nil
}

func (m *Manager) waitOrShutdown(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
