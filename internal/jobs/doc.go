// Package jobs persists draft-generation and rewrite jobs in SQLite and
// implements the job state machine the workflow manager drives.
package jobs
