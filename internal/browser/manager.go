// Package browser implements the crawl driver against a real Chrome
// instance: lifecycle management, stealth pages, human-paced navigation
// and HTML extraction for listing and detail pages.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// sessionCookieName is the site's authentication cookie.
const sessionCookieName = "li_at"

// Config configures the browser manager.
type Config struct {
	// DebuggerURL is the DevTools websocket URL of an external Chrome
	// instance. Empty = launch a local Chrome via launcher.
	DebuggerURL string

	// Headless runs Chrome without a visible window. Headed is less
	// distinguishable from ordinary use and is the default.
	Headless bool

	// SessionCookie is injected for the site domain before the first
	// navigation. Empty means anonymous browsing.
	SessionCookie string

	// ResourceBlocking lists resource types to block (images, fonts,
	// media). Fewer asset loads mean faster pages and less bandwidth,
	// at the cost of looking slightly less like a full browser.
	ResourceBlocking []string

	// PageTimeout bounds each navigation.
	PageTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.PageTimeout <= 0 {
		c.PageTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome connection: launch or attach, page creation
// with stealth applied, teardown.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome (or connects to an external instance) and injects
// the session cookie.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return nil
	}

	log := m.cfg.Logger

	var wsURL string
	if m.cfg.DebuggerURL != "" {
		wsURL = m.cfg.DebuggerURL
		log.Info("connecting to external browser", "url", wsURL)
	} else {
		l := launcher.New().Headless(m.cfg.Headless)

		// Anti-detection flags.
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("launched local chrome", "headless", m.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b

	if m.cfg.SessionCookie != "" {
		if err := m.injectSessionCookie(); err != nil {
			_ = m.cleanup()
			return fmt.Errorf("browser: inject session cookie: %w", err)
		}
		log.Info("session cookie installed")
	}

	return nil
}

// injectSessionCookie installs the authentication cookie for the site
// domain so the first navigation already carries a logged-in session.
func (m *Manager) injectSessionCookie() error {
	return m.browser.SetCookies([]*proto.NetworkCookieParam{
		{
			Name:     sessionCookieName,
			Value:    m.cfg.SessionCookie,
			Domain:   ".linkedin.com",
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
		},
	})
}

// NewPage creates a stealth page with resource blocking applied. The
// caller owns the page and must Close it.
func (m *Manager) NewPage(ctx context.Context) (*rod.Page, error) {
	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()

	if b == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create stealth page: %w", err)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, m.cfg.ResourceBlocking); err != nil {
			m.cfg.Logger.Warn("resource blocking failed", "error", err)
		}
	}

	return page.Context(ctx), nil
}

// Close shuts down Chrome. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) cleanup() error {
	if m.browser != nil {
		_ = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}

// applyResourceBlocking sets up request interception to block the given
// resource types.
func applyResourceBlocking(page *rod.Page, types []string) error {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if shouldBlock(blockSet, string(ctx.Request.Type())) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()

	return nil
}

// shouldBlock maps CDP resource types to the plural names used in config.
func shouldBlock(blockSet map[string]bool, resType string) bool {
	switch strings.ToLower(resType) {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}
	return blockSet[strings.ToLower(resType)]
}
