package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wbwatch/internal/config"
	"wbwatch/internal/orders"
	"wbwatch/internal/services"
	"wbwatch/internal/sheets"
)

// Ledger is the persisted set of orders that were recorded and notified.
//
// FilterUnseen is a pure read: calling it twice against the same ledger state
// returns the same result. MarkProcessed is idempotent and safe to call
// concurrently for different keys.
type Ledger interface {
	FilterUnseen(ctx context.Context, batch []orders.Order) ([]orders.Order, error)
	MarkProcessed(ctx context.Context, order orders.Order) error
	Seen(ctx context.Context, key orders.Key) (bool, error)
	List(ctx context.Context, limit int) ([]orders.LedgerEntry, error)
	Close() error
}

// Option configures a ledger backend.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the timestamp source for new entries.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open builds the backend selected by cfg. The sqlite backend shares store;
// the redis backend dials cfg.Ledger.RedisURL and verifies the connection.
func Open(ctx context.Context, cfg *config.Config, store *sheets.Store, opts ...Option) (Ledger, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendSQLite, "":
		if store == nil {
			return nil, services.Wrap(services.ErrConfiguration, "ledger", "open", "sqlite backend requires the sheets store", nil)
		}
		return NewSQLite(store, opts...), nil
	case config.LedgerBackendRedis:
		redisOpts, err := redis.ParseURL(cfg.Ledger.RedisURL)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "ledger", "open", "parse ledger.redis_url", err)
		}
		client := redis.NewClient(redisOpts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, services.Wrap(services.ErrPersistence, "ledger", "open", "connect to redis", err)
		}
		return NewRedis(client, cfg.Ledger.RedisPrefix, cfg.RedisTTL(), opts...), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "open",
			fmt.Sprintf("unsupported backend %q", cfg.Ledger.Backend), nil)
	}
}

// dedupeBatch drops repeated keys within one fetch, keeping the first.
func dedupeBatch(batch []orders.Order) []orders.Order {
	seen := make(map[orders.Key]struct{}, len(batch))
	out := make([]orders.Order, 0, len(batch))
	for _, order := range batch {
		key := order.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, order)
	}
	return out
}

func persistenceError(operation string, key orders.Key, err error) error {
	return services.Wrap(services.ErrPersistence, "ledger", operation, key.String(), err)
}

// batchError reports a failure that concerns a whole batch rather than one key.
func batchError(operation string, batch []orders.Order, err error) error {
	warehouse := ""
	for _, order := range batch {
		switch {
		case warehouse == "":
			warehouse = order.WarehouseName
		case warehouse != order.WarehouseName:
			warehouse = "mixed warehouses"
		}
	}
	detail := fmt.Sprintf("%s: batch of %d", warehouse, len(batch))
	return services.Wrap(services.ErrPersistence, "ledger", operation, detail, err)
}

var (
	_ Ledger = (*SQLite)(nil)
	_ Ledger = (*Redis)(nil)
)
