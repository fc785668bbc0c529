// Package config provides centralized configuration management.
// Every environment variable xpost reads is listed here.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// XPostEnv holds all xpost environment variables.
type XPostEnv struct {
	// Home overrides the xpost home directory (XPOST_HOME)
	Home string

	// BrowserURL is the DevTools websocket of an already running browser (XPOST_BROWSER_URL)
	BrowserURL string

	// BrowserBin is the Chromium binary to launch when BrowserURL is empty (XPOST_BROWSER_BIN)
	BrowserBin string

	// Headless launches the browser without a window (XPOST_HEADLESS)
	Headless bool

	// StartURL is opened when no tab on an allowed host exists (XPOST_START_URL)
	StartURL string

	// AllowedHosts are glob patterns for hosts the page agent may act on (XPOST_ALLOWED_HOSTS)
	AllowedHosts []string

	// SelectorsFile is a JSON file overriding page selectors (XPOST_SELECTORS)
	SelectorsFile string

	// HTTPTimeout bounds each provider call (XPOST_HTTP_TIMEOUT)
	HTTPTimeout time.Duration

	// LogLevel is the minimum structured log level (XPOST_LOG_LEVEL)
	LogLevel string

	// OpenAIBaseURL overrides the OpenAI API base URL (OPENAI_BASE_URL)
	OpenAIBaseURL string

	// XAIBaseURL overrides the xAI API base URL (XAI_BASE_URL)
	XAIBaseURL string
}

// DefaultAllowedHosts matches x.com, twitter.com and their subdomains.
var DefaultAllowedHosts = []string{"x.com", "*.x.com", "twitter.com", "*.twitter.com"}

var (
	env     *XPostEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *XPostEnv {
	envOnce.Do(func() {
		env = &XPostEnv{
			Home:          os.Getenv("XPOST_HOME"),
			BrowserURL:    os.Getenv("XPOST_BROWSER_URL"),
			BrowserBin:    os.Getenv("XPOST_BROWSER_BIN"),
			Headless:      getEnvBool("XPOST_HEADLESS", false),
			StartURL:      getEnvDefault("XPOST_START_URL", "https://x.com/home"),
			AllowedHosts:  getEnvList("XPOST_ALLOWED_HOSTS", DefaultAllowedHosts),
			SelectorsFile: os.Getenv("XPOST_SELECTORS"),
			HTTPTimeout:   getEnvDuration("XPOST_HTTP_TIMEOUT", 60*time.Second),
			LogLevel:      getEnvDefault("XPOST_LOG_LEVEL", "info"),
			OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
			XAIBaseURL:    os.Getenv("XAI_BASE_URL"),
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

// BaseURLOverrides returns provider id → base URL for non-empty overrides.
func (e *XPostEnv) BaseURLOverrides() map[string]string {
	out := make(map[string]string)
	if e.OpenAIBaseURL != "" {
		out["openai"] = e.OpenAIBaseURL
	}
	if e.XAIBaseURL != "" {
		out["xai"] = e.XAIBaseURL
	}
	return out
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}

// Paths holds standard xpost directory paths.
type Paths struct {
	// Home is the xpost home directory (~/.xpost)
	Home string

	// Data is the data directory (~/.xpost/data)
	Data string

	// SettingsDB is the settings database (~/.xpost/data/settings.db)
	SettingsDB string

	// BrowserProfile is the user data dir for a launched browser (~/.xpost/browser)
	BrowserProfile string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		home := Env().Home
		if home == "" {
			userHome, err := os.UserHomeDir()
			if err != nil {
				userHome = "."
			}
			home = filepath.Join(userHome, ".xpost")
		}

		paths = &Paths{
			Home:           home,
			Data:           filepath.Join(home, "data"),
			SettingsDB:     filepath.Join(home, "data", "settings.db"),
			BrowserProfile: filepath.Join(home, "browser"),
		}
	})
	return paths
}

// ResetPaths resets the cached paths (for testing).
func ResetPaths() {
	pathsOnce = sync.Once{}
	paths = nil
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
