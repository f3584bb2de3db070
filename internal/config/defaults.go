package config

const (
	defaultConfigPath           = "~/.config/wbwatch/config.toml"
	defaultDataDir              = "~/.local/share/wbwatch"
	defaultLogDir               = "~/.local/share/wbwatch/logs"
	defaultMarketplaceURL       = "https://marketplace-api.wildberries.ru"
	defaultContentURL           = "https://content-api.wildberries.ru"
	defaultRequestTimeout       = 30
	defaultRateLimitAttempts    = 4
	defaultNetworkAttempts      = 3
	defaultRetryBaseDelayMS     = 2000
	defaultRetryMaxDelayMS      = 60000
	defaultMaxProductPages      = 10
	defaultTelegramAPIURL       = "https://api.telegram.org"
	defaultTelegramTimeout      = 15
	defaultNotifyTimeout        = 10
	defaultPollInterval         = 300
	defaultWarehouseConcurrency = 4
	defaultOrderConcurrency     = 4
	defaultFatalAfterCycles     = 3
	defaultLedgerBackend        = LedgerBackendSQLite
	defaultRedisPrefix          = "wbwatch:ledger:"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Ledger backends.
const (
	LedgerBackendSQLite = "sqlite"
	LedgerBackendRedis  = "redis"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Wildberries: Wildberries{
			MarketplaceURL:    defaultMarketplaceURL,
			ContentURL:        defaultContentURL,
			RequestTimeout:    defaultRequestTimeout,
			RateLimitAttempts: defaultRateLimitAttempts,
			NetworkAttempts:   defaultNetworkAttempts,
			RetryBaseDelayMS:  defaultRetryBaseDelayMS,
			RetryMaxDelayMS:   defaultRetryMaxDelayMS,
			Jitter:            true,
			MaxProductPages:   defaultMaxProductPages,
		},
		Telegram: Telegram{
			APIURL:         defaultTelegramAPIURL,
			RequestTimeout: defaultTelegramTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Poller: Poller{
			IntervalSeconds:      defaultPollInterval,
			WarehouseConcurrency: defaultWarehouseConcurrency,
			OrderConcurrency:     defaultOrderConcurrency,
			FatalAfterCycles:     defaultFatalAfterCycles,
		},
		Ledger: Ledger{
			Backend:     defaultLedgerBackend,
			RedisPrefix: defaultRedisPrefix,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
