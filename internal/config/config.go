// Package config provides configuration management for the Heimdex editor agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort           = 8788
	DefaultLogLevel       = "info"
	DefaultDataDir        = ".heimdex-editor"
	DefaultGatewayURL     = "http://localhost:8000"
	DefaultGatewayTimeout = 30 // seconds
	DefaultPollIntervalMs = 2000
	DefaultHistoryLimit   = 20

	// Environment variable names
	EnvEnv            = "EDITOR_ENV"
	EnvPort           = "EDITOR_PORT"
	EnvLogLevel       = "EDITOR_LOG_LEVEL"
	EnvDataDir        = "EDITOR_DATA_DIR"
	EnvGatewayURL     = "EDITOR_GATEWAY_URL"
	EnvGatewayToken   = "EDITOR_GATEWAY_TOKEN"
	EnvGatewayTimeout = "EDITOR_GATEWAY_TIMEOUT_S"
	EnvPollInterval   = "EDITOR_POLL_INTERVAL_MS"
	EnvHistoryLimit   = "EDITOR_HISTORY_LIMIT"
	EnvHeadless       = "EDITOR_HEADLESS"
	EnvJobID          = "EDITOR_JOB_ID"
	EnvOffline        = "EDITOR_OFFLINE"

	// Database filename
	DBFilename = "editor.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	GatewayURL() string
	GatewayToken() string
	GatewayTimeout() time.Duration
	PollInterval() time.Duration
	HistoryLimit() int
	Headless() bool
	JobID() string
	Offline() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port           int
	logLevel       string
	dataDir        string
	gatewayURL     string
	gatewayToken   string
	gatewayTimeout time.Duration
	pollInterval   time.Duration
	historyLimit   int
	headless       bool
	jobID          string
	offline        bool
}

// LoadDotEnv reads a .env file from the working directory unless
// EDITOR_ENV is "production". A missing file is not an error.
func LoadDotEnv() {
	if os.Getenv(EnvEnv) == "production" {
		return
	}
	_ = godotenv.Load()
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		gatewayURL:     DefaultGatewayURL,
		gatewayTimeout: DefaultGatewayTimeout * time.Second,
		pollInterval:   DefaultPollIntervalMs * time.Millisecond,
		historyLimit:   DefaultHistoryLimit,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if gu := os.Getenv(EnvGatewayURL); gu != "" {
		u, err := url.Parse(gu)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid %s: must be an http(s) URL", EnvGatewayURL)
		}
		cfg.gatewayURL = gu
	}

	cfg.gatewayToken = os.Getenv(EnvGatewayToken)
	cfg.jobID = os.Getenv(EnvJobID)

	var err error
	if cfg.gatewayTimeout, err = positiveDuration(EnvGatewayTimeout, time.Second, cfg.gatewayTimeout); err != nil {
		return nil, err
	}
	if cfg.pollInterval, err = positiveDuration(EnvPollInterval, time.Millisecond, cfg.pollInterval); err != nil {
		return nil, err
	}

	if hl := os.Getenv(EnvHistoryLimit); hl != "" {
		n, err := strconv.Atoi(hl)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvHistoryLimit)
		}
		cfg.historyLimit = n
	}

	if cfg.headless, err = boolEnv(EnvHeadless); err != nil {
		return nil, err
	}
	if cfg.offline, err = boolEnv(EnvOffline); err != nil {
		return nil, err
	}

	return cfg, nil
}

func positiveDuration(key string, unit, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return time.Duration(n) * unit, nil
}

func boolEnv(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) GatewayURL() string {
	return c.gatewayURL
}

func (c *EnvConfig) GatewayToken() string {
	return c.gatewayToken
}

func (c *EnvConfig) GatewayTimeout() time.Duration {
	return c.gatewayTimeout
}

// PollInterval is how often an in-progress export is polled.
func (c *EnvConfig) PollInterval() time.Duration {
	return c.pollInterval
}

func (c *EnvConfig) HistoryLimit() int {
	return c.historyLimit
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// JobID is the job opened at startup, if any.
func (c *EnvConfig) JobID() string {
	return c.jobID
}

// Offline swaps the HTTP gateway for the in-memory one.
func (c *EnvConfig) Offline() bool {
	return c.offline
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
