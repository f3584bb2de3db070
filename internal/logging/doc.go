// Package logging assembles structured slog loggers and formatting helpers used
// across wbwatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so poller code can automatically
// tag log lines with cycle IDs, warehouses, order IDs, and stages. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
