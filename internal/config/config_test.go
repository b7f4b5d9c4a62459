package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// This test ensures that defaults are documented through tests and that changes
// to defaults are intentional (tests will fail if defaults change unexpectedly).
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	// Verify each default value explicitly
	// This serves as living documentation of the defaults
	t.Run("default delay range is 800ms-3s", func(t *testing.T) {
		t.Parallel()
		if cfg.MinDelay != 800*time.Millisecond {
			t.Errorf("expected MinDelay to be 800ms, got %v", cfg.MinDelay)
		}
		if cfg.MaxDelay != 3*time.Second {
			t.Errorf("expected MaxDelay to be 3s, got %v", cfg.MaxDelay)
		}
	})

	t.Run("default TypingDelay is 80ms", func(t *testing.T) {
		t.Parallel()
		if cfg.TypingDelay != 80*time.Millisecond {
			t.Errorf("expected TypingDelay to be 80ms, got %v", cfg.TypingDelay)
		}
	})

	t.Run("default MouseSteps is 25", func(t *testing.T) {
		t.Parallel()
		if cfg.MouseSteps != 25 {
			t.Errorf("expected MouseSteps to be 25, got %d", cfg.MouseSteps)
		}
	})

	t.Run("default MinRequestInterval is 2s", func(t *testing.T) {
		t.Parallel()
		if cfg.MinRequestInterval != 2*time.Second {
			t.Errorf("expected MinRequestInterval to be 2s, got %v", cfg.MinRequestInterval)
		}
	})

	t.Run("default MaxRequestsPerHour is 100", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxRequestsPerHour != 100 {
			t.Errorf("expected MaxRequestsPerHour to be 100, got %d", cfg.MaxRequestsPerHour)
		}
	})

	t.Run("default MaxPagesPerSession is 10", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPagesPerSession != 10 {
			t.Errorf("expected MaxPagesPerSession to be 10, got %d", cfg.MaxPagesPerSession)
		}
	})

	t.Run("default Headless is false", func(t *testing.T) {
		t.Parallel()
		if cfg.Headless {
			t.Error("expected Headless to be false")
		}
	})

	t.Run("default DataDir is under XDG data home", func(t *testing.T) {
		t.Parallel()
		if !strings.HasSuffix(cfg.DataDir, AppName) {
			t.Errorf("expected DataDir to end in %q, got %q", AppName, cfg.DataDir)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:    "defaults are valid",
			modify:  func(*Config) {},
			wantErr: nil,
		},
		{
			name:    "zero limiter settings are valid",
			modify:  func(c *Config) { c.MinRequestInterval = 0; c.MaxRequestsPerHour = 0 },
			wantErr: nil,
		},
		{
			name:    "empty data dir",
			modify:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrNoDataDir,
		},
		{
			name:    "inverted delay range",
			modify:  func(c *Config) { c.MinDelay = 5 * time.Second; c.MaxDelay = time.Second },
			wantErr: ErrInvalidDelayRange,
		},
		{
			name:    "negative min delay",
			modify:  func(c *Config) { c.MinDelay = -time.Second },
			wantErr: ErrInvalidDelayRange,
		},
		{
			name:    "negative typing delay",
			modify:  func(c *Config) { c.TypingDelay = -time.Millisecond },
			wantErr: ErrInvalidTypingDelay,
		},
		{
			name:    "zero mouse steps",
			modify:  func(c *Config) { c.MouseSteps = 0 },
			wantErr: ErrInvalidMouseSteps,
		},
		{
			name:    "negative request interval",
			modify:  func(c *Config) { c.MinRequestInterval = -time.Second },
			wantErr: ErrInvalidRequestInterval,
		},
		{
			name:    "negative hourly ceiling",
			modify:  func(c *Config) { c.MaxRequestsPerHour = -1 },
			wantErr: ErrInvalidHourlyCeiling,
		},
		{
			name:    "zero page budget",
			modify:  func(c *Config) { c.MaxPagesPerSession = 0 },
			wantErr: ErrInvalidPageBudget,
		},
		{
			name:    "zero retry attempts",
			modify:  func(c *Config) { c.RetryAttempts = 0 },
			wantErr: ErrInvalidRetryAttempts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestFileApply verifies YAML override merging onto defaults.
func TestFileApply(t *testing.T) {
	t.Parallel()

	t.Run("sparse file only overrides named fields", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		f := &File{
			MinDelayMS:            500,
			MaxRequestsPerHour:    50,
			MinRequestIntervalSec: 1.5,
		}
		f.Apply(cfg)

		if cfg.MinDelay != 500*time.Millisecond {
			t.Errorf("MinDelay = %v, want 500ms", cfg.MinDelay)
		}
		if cfg.MaxRequestsPerHour != 50 {
			t.Errorf("MaxRequestsPerHour = %d, want 50", cfg.MaxRequestsPerHour)
		}
		if cfg.MinRequestInterval != 1500*time.Millisecond {
			t.Errorf("MinRequestInterval = %v, want 1.5s", cfg.MinRequestInterval)
		}

		// Untouched fields keep their defaults.
		if cfg.MaxDelay != DefaultMaxDelay {
			t.Errorf("MaxDelay = %v, want default %v", cfg.MaxDelay, DefaultMaxDelay)
		}
		if cfg.MaxPagesPerSession != DefaultMaxPagesPerSession {
			t.Errorf("MaxPagesPerSession = %d, want default", cfg.MaxPagesPerSession)
		}
	})

	t.Run("headless false is a real override", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Headless = true

		off := false
		(&File{Headless: &off}).Apply(cfg)
		if cfg.Headless {
			t.Error("expected explicit headless:false to win")
		}
	})
}

// TestLoadConfigFile verifies YAML loading behavior.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads valid yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := "min_delay_ms: 600\nmax_delay_ms: 2500\nmax_pages_per_session: 5\nheadless: true\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}
		if f.MinDelayMS != 600 || f.MaxDelayMS != 2500 || f.MaxPagesPerSession != 5 {
			t.Errorf("loaded file = %+v", f)
		}
		if f.Headless == nil || !*f.Headless {
			t.Error("expected headless true")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("min_delay_ms: [not a number"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})
}

// TestLoadEnv verifies credential loading from .env files and the
// process environment.
//
// Not parallel: these subtests mutate process-wide environment variables.
func TestLoadEnv(t *testing.T) {
	t.Run("reads cookie from env file", func(t *testing.T) {
		os.Unsetenv(SessionCookieEnv)
		t.Cleanup(func() { os.Unsetenv(SessionCookieEnv) })

		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte(SessionCookieEnv+"=cookie-from-file\n"), 0600); err != nil {
			t.Fatal(err)
		}

		cfg := NewConfig()
		if err := LoadEnv(cfg, path); err != nil {
			t.Fatalf("LoadEnv() error = %v", err)
		}
		if cfg.SessionCookie != "cookie-from-file" {
			t.Errorf("SessionCookie = %q, want value from file", cfg.SessionCookie)
		}
	})

	t.Run("process environment wins over file", func(t *testing.T) {
		t.Setenv(SessionCookieEnv, "cookie-from-env")

		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte(SessionCookieEnv+"=cookie-from-file\n"), 0600); err != nil {
			t.Fatal(err)
		}

		cfg := NewConfig()
		if err := LoadEnv(cfg, path); err != nil {
			t.Fatalf("LoadEnv() error = %v", err)
		}
		if cfg.SessionCookie != "cookie-from-env" {
			t.Errorf("SessionCookie = %q, want env to win", cfg.SessionCookie)
		}
	})

	t.Run("missing env file is not an error", func(t *testing.T) {
		os.Unsetenv(SessionCookieEnv)

		cfg := NewConfig()
		if err := LoadEnv(cfg, filepath.Join(t.TempDir(), "absent.env")); err != nil {
			t.Errorf("LoadEnv() error = %v, want nil for missing file", err)
		}
		if cfg.SessionCookie != "" {
			t.Errorf("SessionCookie = %q, want empty", cfg.SessionCookie)
		}
	})
}
