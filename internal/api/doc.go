// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal job and project models into
// transport-friendly DTOs so CLI and HTTP consumers never couple to internal
// types.
//
// DTOs use camelCase JSON tags. Internal enums (jobs.Status, jobs.Kind) are
// exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
// Stored artifact payloads (evidence map, QA report, visual plan, result) are
// passed through as json.RawMessage to avoid double-encoding. List endpoints
// return summaries; describe endpoints include the heavy artifacts.
package api
