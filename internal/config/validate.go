package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateSeeds(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if c.Telegram.DryRun {
		return nil
	}
	if c.Telegram.BotToken == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("telegram.bot_token is required. Set WBWATCH_TELEGRAM_TOKEN env var or edit %s (create with 'wbwatch config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateTimings() error {
	return ensurePositiveMap(map[string]int{
		"poller.interval_seconds":         c.Poller.IntervalSeconds,
		"poller.warehouse_concurrency":    c.Poller.WarehouseConcurrency,
		"poller.order_concurrency":        c.Poller.OrderConcurrency,
		"poller.fatal_after_cycles":       c.Poller.FatalAfterCycles,
		"wildberries.request_timeout":     c.Wildberries.RequestTimeout,
		"telegram.request_timeout":        c.Telegram.RequestTimeout,
		"notifications.request_timeout":   c.Notifications.RequestTimeout,
		"wildberries.rate_limit_attempts": c.Wildberries.RateLimitAttempts,
		"wildberries.network_attempts":    c.Wildberries.NetworkAttempts,
	})
}

func (c *Config) validateRetry() error {
	if c.Wildberries.RetryBaseDelayMS < 0 {
		return errors.New("wildberries.retry_base_delay_ms must be >= 0")
	}
	if c.Wildberries.RetryMaxDelayMS < c.Wildberries.RetryBaseDelayMS {
		return errors.New("wildberries.retry_max_delay_ms must be >= wildberries.retry_base_delay_ms")
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Backend {
	case LedgerBackendSQLite:
		return nil
	case LedgerBackendRedis:
		if c.Ledger.RedisURL == "" {
			return errors.New("ledger.redis_url must be set when ledger.backend is redis (or set WBWATCH_REDIS_URL)")
		}
		return nil
	default:
		return fmt.Errorf("ledger.backend: unsupported value %q (want sqlite or redis)", c.Ledger.Backend)
	}
}

func (c *Config) validateSeeds() error {
	for i, wh := range c.Warehouses {
		if wh.Name == "" {
			return fmt.Errorf("warehouses[%d].name must be set", i)
		}
		if wh.APIKey == "" {
			return fmt.Errorf("warehouses[%d].api_key must be set for %q", i, wh.Name)
		}
	}
	for i, entry := range c.Access {
		if strings.TrimSpace(entry.Warehouse) == "" {
			return fmt.Errorf("access[%d].warehouse must be set", i)
		}
		if entry.RecipientID == 0 {
			return fmt.Errorf("access[%d].recipient_id must be set", i)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
