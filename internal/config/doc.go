// Package config loads, normalizes, and validates the TOML configuration
// for the dubbing pipeline, and reads provider credentials from the
// environment. Path fields are tilde-expanded and made absolute during
// normalization so downstream packages never re-resolve them.
package config
