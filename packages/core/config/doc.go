// Package config handles configuration loading and management for hitchain.
//
// It provides functionality for:
//   - Loading configuration from .hitchain.json, hitchain.config.json or .hitchainrc
//   - Default configuration values
//   - Named environments with their own base URL and variables
//   - Merging file, environment-variable and flag layers
package config
