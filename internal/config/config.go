package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Build-time variables injected via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Config holds all control-plane configuration loaded from environment variables.
type Config struct {
	// ListenPort is the HTTP API port.
	ListenPort int

	// DataDir is the root directory for the record store and object payloads.
	DataDir string

	// LogDir is the directory for log files. Empty means stdout.
	LogDir string

	// DockerHost is the docker engine endpoint: a unix socket path,
	// a "unix://" URL or a "tcp://"/"http://" URL.
	DockerHost string

	// AuthSecret signs session bearer tokens.
	AuthSecret string

	// CapabilitySecret signs presigned capability tokens. Falls back to
	// AuthSecret when unset.
	CapabilitySecret string

	// ReconcileInterval is the runtime-state sync period.
	ReconcileInterval time.Duration

	// UsageInterval is the storage usage aggregation period.
	UsageInterval time.Duration

	// PresignTTL is the default lifetime of presigned download URLs.
	PresignTTL time.Duration

	// Debug enables verbose logging.
	Debug bool
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenPort:        8080,
		DataDir:           "/var/lib/ncp",
		DockerHost:        "/var/run/docker.sock",
		ReconcileInterval: 60 * time.Second,
		UsageInterval:     time.Hour,
		PresignTTL:        time.Hour,
	}
}

// Load reads configuration from environment variables, applying defaults
// for anything not explicitly set. Returns an error if required values
// are missing or malformed.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	cfg.AuthSecret = strings.TrimSpace(os.Getenv("NCP_AUTH_SECRET"))
	if cfg.AuthSecret == "" {
		return nil, fmt.Errorf("NCP_AUTH_SECRET is required")
	}

	cfg.CapabilitySecret = strings.TrimSpace(os.Getenv("NCP_CAPABILITY_SECRET"))
	if cfg.CapabilitySecret == "" {
		cfg.CapabilitySecret = cfg.AuthSecret
	}

	if v := os.Getenv("NCP_LISTEN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("NCP_LISTEN_PORT is invalid: %q", v)
		}
		cfg.ListenPort = port
	}

	if v := os.Getenv("NCP_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("NCP_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}

	if v := os.Getenv("NCP_DOCKER_HOST"); v != "" {
		cfg.DockerHost = v
	}

	var err error
	if cfg.ReconcileInterval, err = durationEnv("NCP_RECONCILE_INTERVAL", cfg.ReconcileInterval); err != nil {
		return nil, err
	}
	if cfg.UsageInterval, err = durationEnv("NCP_USAGE_INTERVAL", cfg.UsageInterval); err != nil {
		return nil, err
	}
	if cfg.PresignTTL, err = durationEnv("NCP_PRESIGN_TTL", cfg.PresignTTL); err != nil {
		return nil, err
	}

	cfg.Debug = os.Getenv("NCP_DEBUG") == "true"

	return cfg, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s is invalid: %q", name, v)
	}
	return d, nil
}

// NewLogger creates a structured logger. When LogDir is set the logger
// writes JSON lines to <LogDir>/<name>.log, otherwise to stdout.
func NewLogger(cfg *Config, name string) (*slog.Logger, error) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	if cfg.LogDir == "" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})), nil
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	logPath := filepath.Join(cfg.LogDir, name+".log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}

	return slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})), nil
}
