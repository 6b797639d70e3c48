// Package config loads, validates, and normalizes podscribe's TOML
// configuration.
package config
