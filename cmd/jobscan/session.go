package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/jobscan/internal/browser"
	"github.com/nao1215/jobscan/internal/config"
	"github.com/nao1215/jobscan/internal/crawler"
	"github.com/nao1215/jobscan/internal/index"
	"github.com/nao1215/jobscan/internal/ledger"
	"github.com/nao1215/jobscan/internal/log"
	"github.com/nao1215/jobscan/internal/model"
	"github.com/nao1215/jobscan/internal/ratelimit"
	"github.com/nao1215/jobscan/internal/storage"
)

// defaultBlockedResources are the resource types the browser skips
// loading. Listings are text; images, fonts and media only cost time and
// bandwidth.
var defaultBlockedResources = []string{"images", "fonts", "media"}

// addConfigFlags registers the flags every data-touching command shares.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .jobscan.yml in current, XDG config, or home directory)")
	cmd.Flags().String("data-dir", "",
		"Data directory for the ledger, index and stored jobs (default: XDG data directory)")
}

// addBrowserFlags registers the flags shared by commands that drive a
// browser session.
func addBrowserFlags(cmd *cobra.Command) {
	cmd.Flags().String("env-file", "",
		"Path to a .env file holding JOBSCAN_LI_AT (default: .env in current directory)")
	cmd.Flags().Bool("headless", false,
		"Run the browser without a visible window")
	cmd.Flags().String("debugger-url", "",
		"Attach to a running browser via its DevTools websocket URL instead of launching one")
	cmd.Flags().Duration("min-delay", config.DefaultMinDelay,
		"Minimum pause between browser actions")
	cmd.Flags().Duration("max-delay", config.DefaultMaxDelay,
		"Maximum pause between browser actions")
	cmd.Flags().Duration("min-interval", config.DefaultMinRequestInterval,
		"Minimum gap between page navigations (0 disables)")
	cmd.Flags().Int("max-hourly", config.DefaultMaxRequestsPerHour,
		"Maximum page navigations per sliding hour (0 disables)")
	cmd.Flags().Int("max-actions", 0,
		"Maximum gated actions for this run (0 means unlimited)")
	cmd.Flags().Duration("page-timeout", config.DefaultPageTimeout,
		"Page load timeout")
	cmd.Flags().Int("retries", config.DefaultRetryAttempts,
		"Detail fetch attempts per listing before recording a failure")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, an optional YAML file and
// the flags registered by addConfigFlags. Later sources win.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly named a config file, it must exist. An
	// implicit lookup that finds nothing just keeps the defaults.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if cmd.Flags().Changed("data-dir") {
		if cfg.DataDir, err = cmd.Flags().GetString("data-dir"); err != nil {
			return nil, err
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// buildCrawlConfig extends buildConfig with the environment (session
// cookie) and the browser flags, then validates the result.
func buildCrawlConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnv(cfg, envFile); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := applyBrowserFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// applyBrowserFlags copies browser flags the user actually set into cfg,
// so flag defaults never clobber config file values.
func applyBrowserFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error

	if f.Changed("headless") {
		if cfg.Headless, err = f.GetBool("headless"); err != nil {
			return err
		}
	}
	if f.Changed("debugger-url") {
		if cfg.DebuggerURL, err = f.GetString("debugger-url"); err != nil {
			return err
		}
	}
	if f.Changed("min-delay") {
		if cfg.MinDelay, err = f.GetDuration("min-delay"); err != nil {
			return err
		}
	}
	if f.Changed("max-delay") {
		if cfg.MaxDelay, err = f.GetDuration("max-delay"); err != nil {
			return err
		}
	}
	if f.Changed("min-interval") {
		if cfg.MinRequestInterval, err = f.GetDuration("min-interval"); err != nil {
			return err
		}
	}
	if f.Changed("max-hourly") {
		if cfg.MaxRequestsPerHour, err = f.GetInt("max-hourly"); err != nil {
			return err
		}
	}
	if f.Changed("max-actions") {
		if cfg.MaxActionsPerSession, err = f.GetInt("max-actions"); err != nil {
			return err
		}
	}
	if f.Changed("page-timeout") {
		if cfg.PageTimeout, err = f.GetDuration("page-timeout"); err != nil {
			return err
		}
	}
	if f.Changed("retries") {
		if cfg.RetryAttempts, err = f.GetInt("retries"); err != nil {
			return err
		}
	}
	return nil
}

// setupLogger creates the sanitizing structured logger. All CLI logging
// goes through the secure handler so the session cookie can never leak
// into output that gets pasted into an issue.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, verbose)
}

// signalContext returns a context canceled on SIGINT/SIGTERM, so an
// interrupted crawl still flushes its ledger records and closes the
// browser.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}

// crawlSession bundles everything a crawl command needs: the browser,
// the ledger writer for this run, the index and the orchestrator.
type crawlSession struct {
	cfg     *config.Config
	crawler *crawler.Crawler
	manager *browser.Manager
	index   *index.Index
	writer  *ledger.Writer
	logger  *slog.Logger
}

// openCrawlSession starts the browser and wires the crawl components
// together. The caller must Close the session.
func openCrawlSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*crawlSession, error) {
	manager := browser.NewManager(browser.Config{
		DebuggerURL:      cfg.DebuggerURL,
		Headless:         cfg.Headless,
		SessionCookie:    cfg.SessionCookie,
		ResourceBlocking: defaultBlockedResources,
		PageTimeout:      cfg.PageTimeout,
		Logger:           logger,
	})
	if err := manager.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	ix, err := index.OpenAndSync(ctx, cfg.IndexDir(), cfg.LedgerDir(), logger)
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	driver := browser.NewDriver(manager,
		browser.WithDriverLogger(logger),
		browser.WithActionDelays(cfg.MinDelay, cfg.MaxDelay),
		browser.WithTypingDelay(cfg.TypingDelay),
		browser.WithMouseSteps(cfg.MouseSteps),
		browser.WithPageTimeout(cfg.PageTimeout),
	)

	writer := ledger.NewWriter(cfg.LedgerDir(), model.NewRunID(time.Now().UTC()))
	limiter := ratelimit.New(cfg.MinRequestInterval, cfg.MaxRequestsPerHour)
	store := storage.NewJobStore(cfg.DataDir)

	cr := crawler.New(driver, store, writer, ix, limiter, cfg.LedgerDir(),
		crawler.WithLogger(logger),
		crawler.WithMaxActions(cfg.MaxActionsPerSession),
		crawler.WithRetryAttempts(cfg.RetryAttempts),
	)

	logger.Info("crawl session opened",
		"run_id", writer.RunID(),
		"data_dir", cfg.DataDir,
		"headless", cfg.Headless,
		"authenticated", cfg.SessionCookie != "")

	return &crawlSession{
		cfg:     cfg,
		crawler: cr,
		manager: manager,
		index:   ix,
		writer:  writer,
		logger:  logger,
	}, nil
}

// Close releases the session's resources in reverse order of acquisition.
func (s *crawlSession) Close() {
	if err := s.writer.Close(); err != nil {
		s.logger.Error("failed to close ledger writer", "error", err)
	}
	if err := s.index.Close(); err != nil {
		s.logger.Error("failed to close index", "error", err)
	}
	if err := s.manager.Close(); err != nil {
		s.logger.Error("failed to close browser", "error", err)
	}
}
