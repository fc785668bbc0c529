// Package browser connects to (or launches) Chromium and finds the tab the
// page agent drives.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/joss/xpost/internal/config"
	"github.com/joss/xpost/internal/logging"
)

// Config selects how a browser session is obtained.
type Config struct {
	// ControlURL of a running browser. Launches one when empty.
	ControlURL string
	// Bin is the browser binary to launch. Looked up when empty.
	Bin          string
	Headless     bool
	UserDataDir  string
	StartURL     string
	AllowedHosts []string
}

// ConfigFromEnv builds a Config from the xpost environment.
func ConfigFromEnv() Config {
	env := config.Env()
	return Config{
		ControlURL:   env.BrowserURL,
		Bin:          env.BrowserBin,
		Headless:     env.Headless,
		UserDataDir:  config.GetPaths().BrowserProfile,
		StartURL:     env.StartURL,
		AllowedHosts: env.AllowedHosts,
	}
}

// Session is a connection to one browser.
type Session struct {
	cfg      Config
	browser  *rod.Browser
	launcher *launcher.Launcher
	log      *logging.Logger
}

// Open connects to cfg.ControlURL, or launches a browser with a persistent
// profile so the user's login survives between runs.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	s := &Session{cfg: cfg, log: logging.New("browser").WithSurface("page")}

	controlURL := cfg.ControlURL
	if controlURL != "" {
		resolved, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, fmt.Errorf("resolve browser url %s: %w", controlURL, err)
		}
		controlURL = resolved
	} else {
		bin := cfg.Bin
		if bin == "" {
			bin, _ = launcher.LookPath()
		}
		l := launcher.New().Bin(bin).Headless(cfg.Headless).Leakless(true)
		if cfg.UserDataDir != "" {
			if err := config.EnsureDir(cfg.UserDataDir); err != nil {
				return nil, fmt.Errorf("create browser profile: %w", err)
			}
			l = l.UserDataDir(cfg.UserDataDir)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		s.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	s.browser = b

	s.log.Info("browser_connected", map[string]interface{}{
		"launched": s.launcher != nil,
		"headless": cfg.Headless,
	})
	return s, nil
}

// Browser returns the underlying rod browser.
func (s *Session) Browser() *rod.Browser { return s.browser }

// Tab returns the first open tab on an allowed host, or opens StartURL.
func (s *Session) Tab(ctx context.Context) (*rod.Page, error) {
	pages, err := s.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if config.HostAllowed(info.URL, s.cfg.AllowedHosts) {
			s.log.Debug("tab_found", map[string]interface{}{"url": info.URL})
			return p, nil
		}
	}

	if s.cfg.StartURL == "" {
		return nil, fmt.Errorf("no tab on an allowed host and no start url")
	}
	p, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: s.cfg.StartURL})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.cfg.StartURL, err)
	}
	if err := p.Timeout(30 * time.Second).WaitLoad(); err != nil {
		s.log.Warn("tab_load_incomplete", map[string]interface{}{"url": s.cfg.StartURL}, err)
	}
	s.log.Info("tab_opened", map[string]interface{}{"url": s.cfg.StartURL})
	return p, nil
}

// Close shuts a launched browser down. A browser we only connected to is
// left running.
func (s *Session) Close() error {
	if s.launcher == nil {
		return nil
	}
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	s.cleanup()
	return err
}

func (s *Session) cleanup() {
	if s.launcher != nil {
		// Kill only: Cleanup would delete the persistent profile.
		s.launcher.Kill()
	}
}
