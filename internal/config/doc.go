// Package config loads, normalizes, and validates kahvi configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// KAHVI_DRIVER. The calibration section is kept as a free-form mapping so
// every key an operator writes takes part in calibration change detection;
// the three keys the cup estimate needs are required and parsed as floats.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
