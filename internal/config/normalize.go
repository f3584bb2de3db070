package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWildberries()
	c.normalizeTelegram()
	c.normalizeNotifications()
	c.normalizeLedger()
	c.normalizeSeeds()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWildberries() {
	c.Wildberries.MarketplaceURL = strings.TrimRight(strings.TrimSpace(c.Wildberries.MarketplaceURL), "/")
	if c.Wildberries.MarketplaceURL == "" {
		c.Wildberries.MarketplaceURL = defaultMarketplaceURL
	}
	c.Wildberries.ContentURL = strings.TrimRight(strings.TrimSpace(c.Wildberries.ContentURL), "/")
	if c.Wildberries.ContentURL == "" {
		c.Wildberries.ContentURL = defaultContentURL
	}
	if c.Wildberries.MaxProductPages <= 0 {
		c.Wildberries.MaxProductPages = defaultMaxProductPages
	}
}

func (c *Config) normalizeTelegram() {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	if c.Telegram.BotToken == "" {
		if value, ok := os.LookupEnv("WBWATCH_TELEGRAM_TOKEN"); ok {
			c.Telegram.BotToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("TELEGRAM_BOT_TOKEN"); ok {
			c.Telegram.BotToken = strings.TrimSpace(value)
		}
	}
	c.Telegram.APIURL = strings.TrimRight(strings.TrimSpace(c.Telegram.APIURL), "/")
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = defaultTelegramAPIURL
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("WBWATCH_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLedger() {
	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = defaultLedgerBackend
	}
	c.Ledger.RedisURL = strings.TrimSpace(c.Ledger.RedisURL)
	if c.Ledger.RedisURL == "" {
		if value, ok := os.LookupEnv("WBWATCH_REDIS_URL"); ok {
			c.Ledger.RedisURL = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Ledger.RedisPrefix) == "" {
		c.Ledger.RedisPrefix = defaultRedisPrefix
	}
	if c.Ledger.RedisTTLHours < 0 {
		c.Ledger.RedisTTLHours = 0
	}
}

func (c *Config) normalizeSeeds() {
	for i := range c.Warehouses {
		c.Warehouses[i].City = strings.TrimSpace(c.Warehouses[i].City)
		c.Warehouses[i].Name = strings.TrimSpace(c.Warehouses[i].Name)
		c.Warehouses[i].APIKey = strings.TrimSpace(c.Warehouses[i].APIKey)
	}
	for i := range c.Access {
		c.Access[i].Warehouse = strings.TrimSpace(c.Access[i].Warehouse)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
