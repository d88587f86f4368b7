// Package qa scores finished drafts against a fixed rubric and collects
// severity-tagged issues for the targeted rewrite planner.
package qa
