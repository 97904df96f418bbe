// Package config loads, normalizes, and validates dubline configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY and OPENROUTER_API_KEY. The Config type centralizes every
// knob the pipeline and CLI need: chunking limits, the credential/model
// rotation pool, synthesis retry and rate-limit settings, translation style,
// and timing tolerances.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical language tags, and clear validation errors.
// The returned *Config is passed explicitly to every collaborator; nothing in
// the repository reads configuration from package-level state.
package config
