package ledger

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"wbwatch/internal/orders"
)

// Redis keeps one key per processed order. SETNX makes marking atomic.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	opts      options
}

type redisEntry struct {
	OrderID     string    `json:"order_id"`
	Warehouse   string    `json:"warehouse"`
	APIKey      string    `json:"api_key"`
	ProcessedAt time.Time `json:"processed_at"`
}

// NewRedis wraps an existing client. A zero ttl keeps entries forever.
func NewRedis(client *redis.Client, keyPrefix string, ttl time.Duration, opts ...Option) *Redis {
	if keyPrefix == "" {
		keyPrefix = "wbwatch:ledger:"
	}
	return &Redis{client: client, keyPrefix: keyPrefix, ttl: ttl, opts: buildOptions(opts)}
}

func (l *Redis) key(k orders.Key) string {
	return l.keyPrefix + k.String()
}

func (l *Redis) FilterUnseen(ctx context.Context, batch []orders.Order) ([]orders.Order, error) {
	candidates := dedupeBatch(batch)
	if len(candidates) == 0 {
		return candidates, nil
	}

	pipe := l.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(candidates))
	for i, order := range candidates {
		cmds[i] = pipe.Exists(ctx, l.key(order.Key()))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, batchError("filter_unseen", candidates, err)
	}

	out := make([]orders.Order, 0, len(candidates))
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			out = append(out, candidates[i])
		}
	}
	return out, nil
}

func (l *Redis) MarkProcessed(ctx context.Context, order orders.Order) error {
	payload, err := json.Marshal(redisEntry{
		OrderID:     order.OrderID,
		Warehouse:   order.WarehouseName,
		APIKey:      orders.MaskAPIKey(order.APIKey),
		ProcessedAt: l.opts.now().UTC(),
	})
	if err != nil {
		return persistenceError("mark_processed", order.Key(), err)
	}
	// A false result means the key already existed; the first entry wins.
	if err := l.client.SetNX(ctx, l.key(order.Key()), payload, l.ttl).Err(); err != nil {
		return persistenceError("mark_processed", order.Key(), err)
	}
	return nil
}

func (l *Redis) Seen(ctx context.Context, key orders.Key) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(key)).Result()
	if err != nil {
		return false, persistenceError("seen", key, err)
	}
	return n > 0, nil
}

func (l *Redis) List(ctx context.Context, limit int) ([]orders.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var keys []string
	iter := l.client.Scan(ctx, 0, l.keyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, persistenceError("list", orders.Key{}, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, persistenceError("list", orders.Key{}, err)
	}
	entries := make([]orders.LedgerEntry, 0, len(values))
	for i, raw := range values {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var entry redisEntry
		if err := json.Unmarshal([]byte(str), &entry); err != nil {
			// Keys written by hand carry no payload; recover the key parts.
			wh, id, _ := strings.Cut(strings.TrimPrefix(keys[i], l.keyPrefix), "|")
			entry = redisEntry{OrderID: id, Warehouse: wh}
		}
		entries = append(entries, orders.LedgerEntry{
			OrderID:       entry.OrderID,
			WarehouseName: entry.Warehouse,
			APIKey:        entry.APIKey,
			ProcessedAt:   entry.ProcessedAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ProcessedAt.After(entries[j].ProcessedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (l *Redis) Close() error {
	return l.client.Close()
}
