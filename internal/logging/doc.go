// Package logging builds the slog loggers used across the pipeline.
//
// It provides console and JSON handlers, attribute helper aliases, component
// loggers, and context-derived fields (feed slug, entry identifier, step,
// correlation id) so every run emits uniformly keyed structured logs.
//
// Construct loggers through New or NewFromConfig; never call slog.New
// directly from other packages.
package logging
