// Package prompts builds the model prompts used across the pipeline. Each
// content mode has a fixed strategy; builders embed transcript excerpts,
// chapter goals, evidence entries, and review issues into the templates.
package prompts
