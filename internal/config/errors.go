package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoDataDir is returned when the data directory is empty.
	// Every run needs somewhere to put the ledger, index and jobs.
	ErrNoDataDir = errors.New("no data directory configured")

	// ErrInvalidDelayRange is returned when the action delay bounds are
	// negative or inverted.
	ErrInvalidDelayRange = errors.New("invalid delay range: min and max must be non-negative and min <= max")

	// ErrInvalidTypingDelay is returned when the typing delay is negative.
	ErrInvalidTypingDelay = errors.New("invalid typing delay: must be non-negative")

	// ErrInvalidMouseSteps is returned when the pointer path step count
	// is not positive.
	ErrInvalidMouseSteps = errors.New("invalid mouse steps: must be positive")

	// ErrInvalidRequestInterval is returned when the minimum request
	// interval is negative. Use 0 to disable the minimum gap.
	ErrInvalidRequestInterval = errors.New("invalid request interval: must be non-negative")

	// ErrInvalidHourlyCeiling is returned when the hourly request
	// ceiling is negative. Use 0 to disable the ceiling.
	ErrInvalidHourlyCeiling = errors.New("invalid hourly request ceiling: must be non-negative")

	// ErrInvalidPageBudget is returned when the per-session page budget
	// is not positive.
	ErrInvalidPageBudget = errors.New("invalid page budget: must be positive")

	// ErrInvalidRetryAttempts is returned when the retry bound is not
	// positive. At least one attempt is required to make any progress.
	ErrInvalidRetryAttempts = errors.New("invalid retry attempts: must be positive")
)
