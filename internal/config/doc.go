// Package config loads, normalizes, and validates wbwatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// WBWATCH_TELEGRAM_TOKEN. Settings are loaded once at startup; changing them
// requires a restart.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
