// Package services defines shared utilities consumed by the pipeline and the
// external collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp feed slugs, entry identifiers, step names,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into entry-level retries versus run-fatal aborts.
//
// Use these helpers when wiring new collaborator logic so operational
// behaviour (error handling, observability, retries) stays uniform across the
// pipeline.
package services
