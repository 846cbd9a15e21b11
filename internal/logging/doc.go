// Package logging assembles structured slog loggers and formatting helpers
// used across quill components.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attr helpers so pipeline code tags log lines with
// session IDs, actors, and event types consistently. A no-op logger is
// provided for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
