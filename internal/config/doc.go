// Package config loads and validates the recorder's YAML configuration.
package config
