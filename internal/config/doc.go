// Package config loads, normalizes, and validates the Strata configuration.
//
// Configuration is a single TOML file (default ~/.config/strata/config.toml)
// decoded over repository defaults, so a missing file or sparse file is fine.
// All paths are expanded to absolute form during load and numeric settings
// are clamped to sane defaults before validation runs.
package config
