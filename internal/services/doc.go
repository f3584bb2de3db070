// Package services defines shared utilities consumed by the poller and its
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp cycle IDs, warehouse names, order IDs, and
//     stage names for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (rate limited, network, auth, persistence, delivery) with
//     errors.Is regardless of how deeply they were wrapped.
//
// Use these helpers when wiring new integration code so retries and log
// context stay uniform across the poller.
package services
