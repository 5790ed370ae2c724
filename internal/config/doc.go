// Package config provides configuration loading and validation for the
// trim audio service. It handles YAML-based configuration with struct
// validation and carries the built-in silence detection presets.
package config
