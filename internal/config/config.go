package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Wildberries contains configuration for the marketplace and content APIs.
type Wildberries struct {
	MarketplaceURL    string `toml:"marketplace_url"`
	ContentURL        string `toml:"content_url"`
	RequestTimeout    int    `toml:"request_timeout"`
	RateLimitAttempts int    `toml:"rate_limit_attempts"`
	NetworkAttempts   int    `toml:"network_attempts"`
	RetryBaseDelayMS  int    `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS   int    `toml:"retry_max_delay_ms"`
	Jitter            bool   `toml:"jitter"`
	MaxProductPages   int    `toml:"max_product_pages"`
}

// Telegram contains configuration for the Bot API transport.
type Telegram struct {
	BotToken       string `toml:"bot_token"`
	APIURL         string `toml:"api_url"`
	RequestTimeout int    `toml:"request_timeout"`
	// DryRun logs formatted messages instead of sending them.
	DryRun bool `toml:"dry_run"`
}

// Notifications contains configuration for ntfy operator alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Poller contains configuration for the poll cycle.
type Poller struct {
	IntervalSeconds      int `toml:"interval_seconds"`
	WarehouseConcurrency int `toml:"warehouse_concurrency"`
	OrderConcurrency     int `toml:"order_concurrency"`
	FatalAfterCycles     int `toml:"fatal_after_cycles"`
}

// Ledger selects the dedup ledger backend.
type Ledger struct {
	Backend       string `toml:"backend"`
	RedisURL      string `toml:"redis_url"`
	RedisPrefix   string `toml:"redis_prefix"`
	RedisTTLHours int    `toml:"redis_ttl_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// WarehouseSeed is a WB sheet row declared in the config file.
type WarehouseSeed struct {
	City   string `toml:"city"`
	Name   string `toml:"name"`
	APIKey string `toml:"api_key"`
}

// AccessSeed is an Access sheet row declared in the config file.
type AccessSeed struct {
	Warehouse   string `toml:"warehouse"`
	RecipientID int64  `toml:"recipient_id"`
}

// Config encapsulates all configuration values for wbwatch.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Wildberries: API endpoints, timeouts and retry policy
//   - Telegram: order notification transport
//   - Notifications: ntfy operator alerts
//   - Poller: cycle interval and worker pool sizes
//   - Ledger: dedup ledger backend (sqlite or redis)
//   - Logging: log format and level
//   - Warehouses / Access: optional seeds for the WB and Access sheets
type Config struct {
	Paths         Paths           `toml:"paths"`
	Wildberries   Wildberries     `toml:"wildberries"`
	Telegram      Telegram        `toml:"telegram"`
	Notifications Notifications   `toml:"notifications"`
	Poller        Poller          `toml:"poller"`
	Ledger        Ledger          `toml:"ledger"`
	Logging       Logging         `toml:"logging"`
	Warehouses    []WarehouseSeed `toml:"warehouses"`
	Access        []AccessSeed    `toml:"access"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("wbwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the SQLite database holding the sheets and the ledger.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.DataDir, "wbwatch.db")
}

// LockPath returns the single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "wbwatch.lock")
}

// PIDPath returns the daemon pid file path.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "wbwatch.pid")
}

// PollInterval returns the configured cycle interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalSeconds) * time.Second
}

// RequestTimeout returns the per-call timeout for Wildberries requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Wildberries.RequestTimeout) * time.Second
}

// RetryBaseDelay returns the first backoff delay.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Wildberries.RetryBaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Wildberries.RetryMaxDelayMS) * time.Millisecond
}

// RedisTTL returns the ledger key expiry; zero keeps entries forever.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Ledger.RedisTTLHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
