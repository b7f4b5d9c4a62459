package config

import "time"

// File represents the structure of the .jobscan.yml configuration file.
// Durations are expressed in the units people actually tune them in:
// milliseconds for browser pacing, seconds for the request interval.
// Zero-valued fields leave the corresponding Config field untouched, so a
// file only needs to name the settings it overrides.
type File struct {
	// DataDir overrides the base data directory.
	DataDir string `yaml:"data_dir,omitempty"`

	// Headless runs the browser without a visible window.
	Headless *bool `yaml:"headless,omitempty"`

	// MinDelayMS and MaxDelayMS bound the pause between browser actions.
	MinDelayMS int `yaml:"min_delay_ms,omitempty"`
	MaxDelayMS int `yaml:"max_delay_ms,omitempty"`

	// TypingDelayMS is the base delay between keystrokes.
	TypingDelayMS int `yaml:"typing_delay_ms,omitempty"`

	// MouseMovementSteps is the number of points on pointer paths.
	MouseMovementSteps int `yaml:"mouse_movement_steps,omitempty"`

	// MinRequestIntervalSec is the minimum gap between navigations.
	MinRequestIntervalSec float64 `yaml:"min_request_interval_sec,omitempty"`

	// MaxRequestsPerHour caps navigations over a sliding hour.
	MaxRequestsPerHour int `yaml:"max_requests_per_hour,omitempty"`

	// MaxPagesPerSession bounds search pagination per run.
	MaxPagesPerSession int `yaml:"max_pages_per_session,omitempty"`

	// MaxActionsPerSession caps all gated actions per run.
	MaxActionsPerSession int `yaml:"max_actions_per_session,omitempty"`

	// PageTimeoutSec is the page load timeout.
	PageTimeoutSec int `yaml:"page_timeout_sec,omitempty"`

	// RetryAttempts bounds detail fetch attempts per listing.
	RetryAttempts int `yaml:"retry_attempts,omitempty"`
}

// Apply merges the file's set fields into the config. Unset (zero) fields
// keep whatever the config already holds, so defaults and flags survive a
// sparse file.
//
// Design decision: Headless is a *bool because "false" is a meaningful
// override; for the numeric fields zero means unset, which is safe because
// no zero value is a useful setting for any of them (0 delays and budgets
// are rejected by Validate, and disabling a limiter is done explicitly via
// flags, not the file).
func (f *File) Apply(c *Config) {
	if f.DataDir != "" {
		c.DataDir = f.DataDir
	}
	if f.Headless != nil {
		c.Headless = *f.Headless
	}
	if f.MinDelayMS > 0 {
		c.MinDelay = time.Duration(f.MinDelayMS) * time.Millisecond
	}
	if f.MaxDelayMS > 0 {
		c.MaxDelay = time.Duration(f.MaxDelayMS) * time.Millisecond
	}
	if f.TypingDelayMS > 0 {
		c.TypingDelay = time.Duration(f.TypingDelayMS) * time.Millisecond
	}
	if f.MouseMovementSteps > 0 {
		c.MouseSteps = f.MouseMovementSteps
	}
	if f.MinRequestIntervalSec > 0 {
		c.MinRequestInterval = time.Duration(f.MinRequestIntervalSec * float64(time.Second))
	}
	if f.MaxRequestsPerHour > 0 {
		c.MaxRequestsPerHour = f.MaxRequestsPerHour
	}
	if f.MaxPagesPerSession > 0 {
		c.MaxPagesPerSession = f.MaxPagesPerSession
	}
	if f.MaxActionsPerSession > 0 {
		c.MaxActionsPerSession = f.MaxActionsPerSession
	}
	if f.PageTimeoutSec > 0 {
		c.PageTimeout = time.Duration(f.PageTimeoutSec) * time.Second
	}
	if f.RetryAttempts > 0 {
		c.RetryAttempts = f.RetryAttempts
	}
}
