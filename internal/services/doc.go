// Package services defines shared utilities consumed by the placement,
// prediction, and migration components.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that classify failures
//     into retryable and terminal categories.
//   - Context helpers that stamp task IDs, object IDs, and correlation
//     identifiers for logging.
//
// Use these helpers when wiring new component logic so operational behaviour
// (error handling, observability, retries) stays uniform across the engine.
package services
