// Package config loads daemon and CLI configuration from environment
// variables (optionally via a .env file), the same precedence order the
// rest of this codebase uses: CLI flags, when the caller applies them
// afterwards, always win over environment, which always wins over the
// built-in defaults returned by Default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every daemon knob the spec names (§4.I, §5, §6).
type Config struct {
	PollTime time.Duration

	ControlFile string
	PidFile     string
	StateFile   string
	IDFile      string

	Daemonize  bool
	DebugLevel string

	HTTPAddr          string
	HTTPUseSSL        bool
	HTTPBasicAuthUser string
	HTTPBasicAuthPass string

	CollectorURLs []string

	Group      string
	StartDelay time.Duration

	RestartLimit  int
	RestartWindow int

	R2AccountID     string
	R2AccessKeyID   string
	R2SecretKey     string
	R2Bucket        string
	R2EndpointURL   string
}

// Default returns the built-in defaults, before any environment or flag
// overrides are applied.
func Default() Config {
	return Config{
		PollTime:      30 * time.Second,
		ControlFile:   "/etc/sentinel/sentineld.conf",
		PidFile:       "/var/run/sentineld.pid",
		StateFile:     "/var/lib/sentineld/state.db",
		IDFile:        "/var/lib/sentineld/id",
		DebugLevel:    "info",
		HTTPAddr:      "",
		Group:         "",
		StartDelay:    0,
		RestartLimit:  5,
		RestartWindow: 5,
	}
}

// Load applies, in order, the built-in defaults, an optional .env file in
// the working directory (silently skipped if absent), then process
// environment variables. The caller (cmd/sentineld) applies CLI flags on
// top of the returned Config, since flags must win over everything here.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env file is not an error

	cfg := Default()

	if v, ok := os.LookupEnv("SENTINEL_POLL_TIME"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: SENTINEL_POLL_TIME: %w", err)
		}
		cfg.PollTime = d
	}
	if v, ok := os.LookupEnv("SENTINEL_CONTROL_FILE"); ok {
		cfg.ControlFile = v
	}
	if v, ok := os.LookupEnv("SENTINEL_PID_FILE"); ok {
		cfg.PidFile = v
	}
	if v, ok := os.LookupEnv("SENTINEL_STATE_FILE"); ok {
		cfg.StateFile = v
	}
	if v, ok := os.LookupEnv("SENTINEL_ID_FILE"); ok {
		cfg.IDFile = v
	}
	if v, ok := os.LookupEnv("SENTINEL_DAEMONIZE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: SENTINEL_DAEMONIZE: %w", err)
		}
		cfg.Daemonize = b
	}
	if v, ok := os.LookupEnv("SENTINEL_DEBUG_LEVEL"); ok {
		cfg.DebugLevel = v
	}
	if v, ok := os.LookupEnv("SENTINEL_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := os.LookupEnv("SENTINEL_HTTP_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: SENTINEL_HTTP_SSL: %w", err)
		}
		cfg.HTTPUseSSL = b
	}
	cfg.HTTPBasicAuthUser = os.Getenv("SENTINEL_HTTP_USER")
	cfg.HTTPBasicAuthPass = os.Getenv("SENTINEL_HTTP_PASS")

	if v, ok := os.LookupEnv("SENTINEL_COLLECTOR_URLS"); ok {
		cfg.CollectorURLs = splitNonEmpty(v, ",")
	}
	cfg.Group = os.Getenv("SENTINEL_GROUP")

	if v, ok := os.LookupEnv("SENTINEL_START_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: SENTINEL_START_DELAY: %w", err)
		}
		cfg.StartDelay = d
	}
	if v, ok := os.LookupEnv("SENTINEL_RESTART_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: SENTINEL_RESTART_LIMIT: %w", err)
		}
		cfg.RestartLimit = n
	}
	if v, ok := os.LookupEnv("SENTINEL_RESTART_WINDOW"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: SENTINEL_RESTART_WINDOW: %w", err)
		}
		cfg.RestartWindow = n
	}

	cfg.R2AccountID = os.Getenv("SENTINEL_R2_ACCOUNT_ID")
	cfg.R2AccessKeyID = os.Getenv("SENTINEL_R2_ACCESS_KEY_ID")
	cfg.R2SecretKey = os.Getenv("SENTINEL_R2_SECRET_ACCESS_KEY")
	cfg.R2Bucket = os.Getenv("SENTINEL_R2_BUCKET")
	cfg.R2EndpointURL = os.Getenv("SENTINEL_R2_ENDPOINT_URL")

	for _, p := range []*string{&cfg.PidFile, &cfg.StateFile, &cfg.IDFile} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, fmt.Errorf("config: resolve %s: %w", *p, err)
		}
		*p = abs
	}

	if cfg.StateFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.StateFile), 0o755); err != nil {
			return nil, fmt.Errorf("config: failed to create state directory: %w", err)
		}
	}

	return &cfg, nil
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
