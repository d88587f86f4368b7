// Package textutil provides text processing utilities for the generation
// pipeline: term-frequency fingerprints with cosine similarity (claim
// traceability and repetition scoring) and sentence boundary detection used
// when windowing transcript segments.
package textutil
