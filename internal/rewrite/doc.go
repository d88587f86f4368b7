// Package rewrite plans and executes the single targeted rewrite pass:
// regenerate only the sections QA flagged, bounded to the evidence map, with
// everything else copied through unchanged.
package rewrite
