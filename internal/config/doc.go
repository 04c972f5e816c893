// Package config loads, normalizes, and validates podfeed configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads the global TOML file, overlays per-feed files from
// feeds/<slug>.toml, and honours environment fallbacks such as
// CLOUDFLARE_API_TOKEN. The Config type centralizes every knob the CLI and
// pipeline need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
