// Package evidence extracts the claim/quote map that grounds chapter
// generation. Chapters without supported claims are marked for skip-or-merge
// rather than generated as filler.
package evidence
