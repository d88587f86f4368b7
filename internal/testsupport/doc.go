// Package testsupport holds shared helpers for tests: temp-dir configs,
// store constructors, and a scripted fake LLM client.
package testsupport
