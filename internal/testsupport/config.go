package testsupport

import (
	"path/filepath"
	"testing"

	"wbwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Telegram.BotToken = "test-token"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Wildberries.RetryBaseDelayMS = 1
	cfgVal.Wildberries.RetryMaxDelayMS = 10
	cfgVal.Wildberries.Jitter = false
	cfgVal.Wildberries.RequestTimeout = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWildberriesURL points both Wildberries APIs at a test server.
func WithWildberriesURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Wildberries.MarketplaceURL = url
		b.cfg.Wildberries.ContentURL = url
	}
}

// WithTelegramURL points the Bot API client at a test server.
func WithTelegramURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Telegram.APIURL = url
	}
}

// WithWarehouse adds a WB seed row.
func WithWarehouse(city, name, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Warehouses = append(b.cfg.Warehouses, config.WarehouseSeed{City: city, Name: name, APIKey: apiKey})
	}
}

// WithAccess adds an Access seed row.
func WithAccess(warehouse string, recipientID int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Access = append(b.cfg.Access, config.AccessSeed{Warehouse: warehouse, RecipientID: recipientID})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
