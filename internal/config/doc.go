// Package config provides configuration structures and utilities for jobscan.
// It defines defaults, an optional YAML file and .env credential loading for
// browser pacing, rate limits and storage locations.
package config
