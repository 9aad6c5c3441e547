// Package config loads, normalizes, and validates the TOML configuration for
// the sceneid daemon and CLI.
//
// All recognition policy constants (confidence thresholds, signal weights,
// admission limits, rate-limit budgets) live here as named fields with
// defaults so they stay inspectable and adjustable without code changes.
package config
