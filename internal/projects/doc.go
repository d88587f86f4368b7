// Package projects stores webinar transcripts, outlines, and the artifacts
// produced for them.
package projects
