package ledger

import (
	"context"

	"wbwatch/internal/orders"
	"wbwatch/internal/sheets"
)

// SQLite keeps the ledger in the ProcessedOrders sheet. The sheet's unique
// (order_id, warehouse) key makes a repeated mark a no-op.
type SQLite struct {
	store *sheets.Store
	opts  options
}

// NewSQLite returns a ledger backed by store.
func NewSQLite(store *sheets.Store, opts ...Option) *SQLite {
	return &SQLite{store: store, opts: buildOptions(opts)}
}

func (l *SQLite) FilterUnseen(ctx context.Context, batch []orders.Order) ([]orders.Order, error) {
	candidates := dedupeBatch(batch)
	out := make([]orders.Order, 0, len(candidates))
	for _, order := range candidates {
		seen, err := l.Seen(ctx, order.Key())
		if err != nil {
			return nil, err
		}
		if !seen {
			out = append(out, order)
		}
	}
	return out, nil
}

func (l *SQLite) MarkProcessed(ctx context.Context, order orders.Order) error {
	entry := orders.LedgerEntry{
		OrderID:       order.OrderID,
		WarehouseName: order.WarehouseName,
		APIKey:        order.APIKey,
		ProcessedAt:   l.opts.now(),
	}
	if err := l.store.AppendRow(ctx, sheets.ProcessedOrders, sheets.ProcessedFields(entry)); err != nil {
		return persistenceError("mark_processed", order.Key(), err)
	}
	return nil
}

func (l *SQLite) Seen(ctx context.Context, key orders.Key) (bool, error) {
	ok, err := l.store.RowExists(ctx, sheets.ProcessedOrders, key.OrderID, key.Warehouse)
	if err != nil {
		return false, persistenceError("seen", key, err)
	}
	return ok, nil
}

func (l *SQLite) List(ctx context.Context, limit int) ([]orders.LedgerEntry, error) {
	return l.store.ProcessedOrders(ctx, limit)
}

// Close is a no-op; the store owns the connection.
func (l *SQLite) Close() error {
	return nil
}
