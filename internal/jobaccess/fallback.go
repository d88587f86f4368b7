package jobaccess

import (
	"fmt"

	"webinar2ebook/internal/ipc"
	"webinar2ebook/internal/jobs"
	"webinar2ebook/internal/projects"
)

// Session represents an access handle and its cleanup function.
type Session struct {
	Access Access
	// Daemon reports whether the session is backed by a live daemon.
	Daemon bool
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries IPC-backed access first, then falls back to direct
// store access.
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	openJobs func() (*jobs.Store, error),
	openProjects func() (*projects.Store, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{
				Access: NewIPCAccess(client),
				Daemon: true,
				close:  client.Close,
			}, nil
		}
	}

	if openJobs == nil || openProjects == nil {
		return Session{}, fmt.Errorf("open stores: no store opener configured")
	}
	jobStore, err := openJobs()
	if err != nil {
		return Session{}, fmt.Errorf("open job store: %w", err)
	}
	projectStore, err := openProjects()
	if err != nil {
		_ = jobStore.Close()
		return Session{}, fmt.Errorf("open project store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(jobStore, projectStore),
		close: func() error {
			err := jobStore.Close()
			if cerr := projectStore.Close(); cerr != nil && err == nil {
				err = cerr
			}
			return err
		},
	}, nil
}
