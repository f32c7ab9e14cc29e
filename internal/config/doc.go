// Package config loads, normalizes, and validates gnssprep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GNSSPREP_CRX2RNX and GNSSPREP_TEQC for the external tool locations. The
// Config type is validated once, before any pipeline stage runs, so stages
// never discover a missing tool halfway through a batch.
package config
