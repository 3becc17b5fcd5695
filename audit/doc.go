// Package audit persists one GenerationRecord per pipeline run in the
// generations table and serves the history read side for the API and CLI.
package audit
