package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are tuned for polite crawling: slow enough to look like a
// person reading listings, fast enough to make progress within a session.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "jobscan"

	// DefaultMinDelay and DefaultMaxDelay bound the pause between
	// browser actions. 800ms-3000ms matches how long a person takes to
	// scan a result row before the next click or scroll.
	DefaultMinDelay = 800 * time.Millisecond
	DefaultMaxDelay = 3 * time.Second

	// DefaultTypingDelay is the base delay between keystrokes when the
	// driver types a search query. 80ms is a comfortable typing pace;
	// per-key jitter is added on top by the timing generator.
	DefaultTypingDelay = 80 * time.Millisecond

	// DefaultMouseSteps is the number of intermediate points on a
	// synthetic pointer path. 25 steps renders a smooth curve without
	// flooding the browser with move events.
	DefaultMouseSteps = 25

	// DefaultMinRequestInterval is the minimum gap between page
	// navigations. 2 seconds keeps bursts of requests from ever looking
	// machine-generated, independent of the hourly ceiling.
	DefaultMinRequestInterval = 2 * time.Second

	// DefaultMaxRequestsPerHour caps navigations over a sliding hour.
	// 100 requests/hour stays well under the traffic a person produces
	// during an active job hunt.
	DefaultMaxRequestsPerHour = 100

	// DefaultMaxPagesPerSession bounds search pagination per run.
	// Deep pagination is a strong bot signal; 10 pages covers the
	// useful portion of most result sets.
	DefaultMaxPagesPerSession = 10

	// DefaultPageTimeout is the page load timeout. Heavy listing pages
	// routinely take 10-20 seconds on a cold cache.
	DefaultPageTimeout = 30 * time.Second

	// DefaultRetryAttempts bounds detail fetch attempts per listing
	// before the failure is recorded.
	DefaultRetryAttempts = 3
)

// Config holds all configuration options for jobscan.
// This struct is designed to be populated from defaults, an optional YAML
// file, a .env file and CLI flags (in that order, later wins), then passed
// through the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., BrowserConfig, LimitConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// DataDir is the base directory for the ledger, index and stored
	// jobs. Defaults to the XDG data directory
	// (~/.local/share/jobscan on Linux).
	DataDir string

	// Headless runs the browser without a visible window. Headed is the
	// default: a visible browser is both easier to debug and less
	// distinguishable from ordinary use.
	Headless bool

	// DebuggerURL attaches to an already running browser via its
	// DevTools websocket URL instead of launching one. Useful for
	// reusing a logged-in session.
	DebuggerURL string

	// SessionCookie is the site session cookie injected into the
	// browser, loaded from the environment or a .env file. It is a
	// credential and must never be logged or written to config files.
	SessionCookie string

	// MinDelay and MaxDelay bound the humanized pause between browser
	// actions.
	MinDelay time.Duration
	MaxDelay time.Duration

	// TypingDelay is the base delay between keystrokes.
	TypingDelay time.Duration

	// MouseSteps is the number of points on synthetic pointer paths.
	MouseSteps int

	// MinRequestInterval is the minimum gap between gated navigations.
	// Zero disables the minimum-gap constraint.
	MinRequestInterval time.Duration

	// MaxRequestsPerHour caps gated navigations over a sliding hour.
	// Zero disables the hourly ceiling.
	MaxRequestsPerHour int

	// MaxPagesPerSession bounds search pagination per run.
	MaxPagesPerSession int

	// MaxActionsPerSession caps all gated actions per run. Zero means
	// no session budget.
	MaxActionsPerSession int

	// PageTimeout is the page load timeout.
	PageTimeout time.Duration

	// RetryAttempts bounds detail fetch attempts per listing.
	RetryAttempts int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only info and above are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file. If empty,
	// the tool searches for .jobscan.yml in the current directory and
	// then in the user's home directory.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., delays, the hourly
// ceiling). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		DataDir:            XDGDataDir(),
		MinDelay:           DefaultMinDelay,
		MaxDelay:           DefaultMaxDelay,
		TypingDelay:        DefaultTypingDelay,
		MouseSteps:         DefaultMouseSteps,
		MinRequestInterval: DefaultMinRequestInterval,
		MaxRequestsPerHour: DefaultMaxRequestsPerHour,
		MaxPagesPerSession: DefaultMaxPagesPerSession,
		PageTimeout:        DefaultPageTimeout,
		RetryAttempts:      DefaultRetryAttempts,
	}
}

// LedgerDir returns the ledger root under the data directory.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.DataDir, "ledger")
}

// IndexDir returns the index directory under the data directory.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "index")
}

// XDGDataDir returns the XDG data directory for jobscan.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/jobscan
// On macOS: ~/Library/Application Support/jobscan
// On Windows: %LOCALAPPDATA%\jobscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for jobscan.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/jobscan
// On macOS: ~/Library/Application Support/jobscan
// On Windows: %APPDATA%\jobscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ErrNoDataDir
	}
	if c.MinDelay < 0 || c.MaxDelay < 0 || c.MinDelay > c.MaxDelay {
		return ErrInvalidDelayRange
	}
	if c.TypingDelay < 0 {
		return ErrInvalidTypingDelay
	}
	if c.MouseSteps <= 0 {
		return ErrInvalidMouseSteps
	}
	if c.MinRequestInterval < 0 {
		return ErrInvalidRequestInterval
	}
	if c.MaxRequestsPerHour < 0 {
		return ErrInvalidHourlyCeiling
	}
	if c.MaxPagesPerSession <= 0 {
		return ErrInvalidPageBudget
	}
	if c.RetryAttempts <= 0 {
		return ErrInvalidRetryAttempts
	}
	return nil
}
