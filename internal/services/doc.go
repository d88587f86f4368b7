// Package services provides shared infrastructure for pipeline components:
// sentinel error markers with wrap helpers, context annotations for job and
// phase correlation, and the bounded retry policy applied to transient
// model-call failures.
package services
