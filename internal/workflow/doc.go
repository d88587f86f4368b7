// Package workflow advances queued jobs through the generation pipeline.
//
// The Manager polls the job queue and drives each job through its phases
// (planning, evidence mapping, chapter generation) with the registered
// handlers, running the QA analysis and persisting project artifacts when a
// draft completes. Rewrite jobs run their own two-phase flow against the
// project's stored draft and QA report. A companion sweep loop removes
// finished jobs past the retention window.
//
// Cancellation is cooperative: the manager and the generating handler reload
// the job row at phase and chapter boundaries and resolve a requested cancel
// into the cancelled status, keeping whatever partial draft exists.
package workflow
