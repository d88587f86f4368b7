package stage

import (
	"context"

	"webinar2ebook/internal/jobs"
)

// Handler describes the contract the workflow manager needs from each phase.
type Handler interface {
	Prepare(context.Context, *jobs.Job) error
	Execute(context.Context, *jobs.Job) error
	HealthCheck(context.Context) Health
}
