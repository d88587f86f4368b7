// Package logging wires log/slog with the handlers and attribute conventions
// used across the daemon: a single-line console handler for interactive use, a
// JSON handler for machine consumption, standardized field keys, and
// context-derived enrichment so every record carries job, project, and phase
// identifiers.
package logging
