// Package browser renders pages in Chrome through go-rod so that dynamic
// panels and computed visibility are available to the extractor.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/config"
)

var (
	ErrNotStarted = errors.New("browser: not started")
	ErrClosed     = errors.New("browser: manager is closed")
)

// Manager owns the Chrome process or the connection to a remote one.
type Manager struct {
	cfg config.BrowserConfig
	log zerolog.Logger

	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

func NewManager(cfg config.BrowserConfig) *Manager {
	return &Manager{
		cfg: cfg,
		log: log.With().Str("component", "browser").Logger(),
	}
}

// Start launches a headless Chrome, or connects to browser.remote_url.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.browser != nil {
		return nil
	}

	wsURL := m.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Context(ctx).Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.log.Info().Str("url", wsURL).Msg("Launched local chrome")
	} else {
		m.log.Info().Str("url", wsURL).Msg("Connecting to remote chrome")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		m.cleanup()
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return nil
}

// Browser returns the connected browser or ErrNotStarted.
func (m *Manager) Browser() (*rod.Browser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.browser == nil {
		return nil, ErrNotStarted
	}
	return m.browser, nil
}

// Close shuts Chrome down. The manager cannot be restarted.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) cleanup() error {
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return err
}
