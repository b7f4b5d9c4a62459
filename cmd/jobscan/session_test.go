package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/jobscan/internal/config"
)

// newTestCrawlCmd returns a command carrying the same flags the crawl
// commands register, without a RunE.
func newTestCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().BoolP("verbose", "v", false, "")
	addConfigFlags(cmd)
	addBrowserFlags(cmd)
	return cmd
}

func TestBuildConfigDefaults(t *testing.T) {
	cmd := newTestCrawlCmd()
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}

	if cfg.MinDelay != config.DefaultMinDelay {
		t.Errorf("MinDelay = %v, want default %v", cfg.MinDelay, config.DefaultMinDelay)
	}
	if cfg.MaxRequestsPerHour != config.DefaultMaxRequestsPerHour {
		t.Errorf("MaxRequestsPerHour = %d, want default %d",
			cfg.MaxRequestsPerHour, config.DefaultMaxRequestsPerHour)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir should default to the XDG data directory")
	}
}

func TestBuildConfigFlagOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "test.yml")
	content := "data_dir: " + filepath.Join(dir, "from-file") + "\nmax_requests_per_hour: 42\nheadless: true\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cmd := newTestCrawlCmd()
	args := []string{
		"--config", configPath,
		"--data-dir", filepath.Join(dir, "from-flag"),
		"--max-hourly", "7",
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		t.Fatalf("buildCrawlConfig() error = %v", err)
	}

	if want := filepath.Join(dir, "from-flag"); cfg.DataDir != want {
		t.Errorf("DataDir = %q, want flag value %q", cfg.DataDir, want)
	}
	if cfg.MaxRequestsPerHour != 7 {
		t.Errorf("MaxRequestsPerHour = %d, want flag value 7", cfg.MaxRequestsPerHour)
	}
	if !cfg.Headless {
		t.Error("Headless should keep the config file value when the flag is not set")
	}
}

func TestBuildConfigExplicitMissingFile(t *testing.T) {
	cmd := newTestCrawlCmd()
	missing := filepath.Join(t.TempDir(), "nope.yml")
	if err := cmd.ParseFlags([]string{"--config", missing}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	if _, err := buildConfig(cmd); err == nil {
		t.Error("buildConfig() should fail when an explicit config file does not exist")
	}
}

func TestBuildCrawlConfigReadsSessionCookieEnv(t *testing.T) {
	t.Setenv(config.SessionCookieEnv, "test-cookie-value")

	cmd := newTestCrawlCmd()
	if err := cmd.ParseFlags([]string{"--data-dir", t.TempDir()}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		t.Fatalf("buildCrawlConfig() error = %v", err)
	}
	if cfg.SessionCookie != "test-cookie-value" {
		t.Errorf("SessionCookie = %q, want value from %s", cfg.SessionCookie, config.SessionCookieEnv)
	}
}

func TestBuildCrawlConfigRejectsInvalidFlags(t *testing.T) {
	cmd := newTestCrawlCmd()
	args := []string{
		"--data-dir", t.TempDir(),
		"--min-delay", "5s",
		"--max-delay", "1s",
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	if _, err := buildCrawlConfig(cmd); err == nil {
		t.Error("buildCrawlConfig() should reject min-delay > max-delay")
	}
}

func TestApplyBrowserFlags(t *testing.T) {
	cmd := newTestCrawlCmd()
	args := []string{
		"--headless",
		"--debugger-url", "ws://127.0.0.1:9222/devtools",
		"--min-interval", "500ms",
		"--max-actions", "30",
		"--retries", "5",
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg := config.NewConfig()
	if err := applyBrowserFlags(cmd, cfg); err != nil {
		t.Fatalf("applyBrowserFlags() error = %v", err)
	}

	if !cfg.Headless {
		t.Error("Headless = false, want true")
	}
	if cfg.DebuggerURL != "ws://127.0.0.1:9222/devtools" {
		t.Errorf("DebuggerURL = %q", cfg.DebuggerURL)
	}
	if cfg.MinRequestInterval != 500*time.Millisecond {
		t.Errorf("MinRequestInterval = %v, want 500ms", cfg.MinRequestInterval)
	}
	if cfg.MaxActionsPerSession != 30 {
		t.Errorf("MaxActionsPerSession = %d, want 30", cfg.MaxActionsPerSession)
	}
	if cfg.RetryAttempts != 5 {
		t.Errorf("RetryAttempts = %d, want 5", cfg.RetryAttempts)
	}
	// Flags left untouched keep their defaults.
	if cfg.MaxRequestsPerHour != config.DefaultMaxRequestsPerHour {
		t.Errorf("MaxRequestsPerHour = %d, want default %d",
			cfg.MaxRequestsPerHour, config.DefaultMaxRequestsPerHour)
	}
}
