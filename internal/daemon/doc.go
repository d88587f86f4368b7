// Package daemon coordinates the long-running webinar2ebook process.
//
// It wires configuration, the job and project stores, and the workflow
// manager into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon recovers jobs interrupted by a crash,
// exposes the HTTP API for project and job operations, and reports
// aggregate status for the CLI.
//
// Keep orchestration logic here: individual generation phases live in
// their respective packages while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
