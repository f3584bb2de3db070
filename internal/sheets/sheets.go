package sheets

import (
	"context"
	"fmt"
	"strings"

	"wbwatch/internal/services"
)

// Sheet names as they appear to operators.
const (
	Tasks           = "Tasks"
	ProcessedOrders = "ProcessedOrders"
	WB              = "WB"
	Access          = "Access"
)

// Layout describes the positional columns of a sheet and the columns that
// identify a row.
type Layout struct {
	Name    string
	Table   string
	Columns []string
	Key     []string
}

var layouts = map[string]Layout{
	Tasks: {
		Name:    Tasks,
		Table:   "tasks",
		Columns: []string{"task_no", "photo", "product_name", "article_id", "sticker", "status", "processed_date", "warehouse"},
		Key:     []string{"task_no", "warehouse"},
	},
	ProcessedOrders: {
		Name:    ProcessedOrders,
		Table:   "processed_orders",
		Columns: []string{"order_id", "warehouse", "api_key", "processed_date"},
		Key:     []string{"order_id", "warehouse"},
	},
	WB: {
		Name:    WB,
		Table:   "wb",
		Columns: []string{"city", "warehouse_name", "api_key"},
		Key:     []string{"warehouse_name"},
	},
	Access: {
		Name:    Access,
		Table:   "access",
		Columns: []string{"warehouse_name", "recipient_id"},
		Key:     []string{"warehouse_name", "recipient_id"},
	},
}

// LayoutFor returns the layout of a named sheet.
func LayoutFor(sheet string) (Layout, bool) {
	layout, ok := layouts[sheet]
	return layout, ok
}

// AppendRow inserts a row into sheet. fields are positional and must match the
// sheet's columns. A row whose key already exists is left untouched, so
// appending the same row twice stores it once.
func (s *Store) AppendRow(ctx context.Context, sheet string, fields []string) error {
	layout, ok := layouts[sheet]
	if !ok {
		return persistenceError("append_row", fmt.Sprintf("unknown sheet %q", sheet), nil)
	}
	if len(fields) != len(layout.Columns) {
		return persistenceError("append_row",
			fmt.Sprintf("%s expects %d fields, got %d", sheet, len(layout.Columns), len(fields)), nil)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(fields)), ", ")
	query := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		layout.Table, strings.Join(layout.Columns, ", "), placeholders)

	args := make([]any, len(fields))
	for i, field := range fields {
		args[i] = field
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return persistenceError("append_row", "insert into "+sheet, err)
	}
	return nil
}

// RowExists reports whether sheet holds a row whose key columns equal key.
func (s *Store) RowExists(ctx context.Context, sheet string, key ...string) (bool, error) {
	layout, ok := layouts[sheet]
	if !ok {
		return false, persistenceError("row_exists", fmt.Sprintf("unknown sheet %q", sheet), nil)
	}
	if len(key) != len(layout.Key) {
		return false, persistenceError("row_exists",
			fmt.Sprintf("%s key has %d parts, got %d", sheet, len(layout.Key), len(key)), nil)
	}

	conditions := make([]string, len(layout.Key))
	args := make([]any, len(key))
	for i, column := range layout.Key {
		conditions[i] = column + " = ?"
		args[i] = key[i]
	}
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s)", layout.Table, strings.Join(conditions, " AND "))

	var exists int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, persistenceError("row_exists", "query "+sheet, err)
	}
	return exists == 1, nil
}

// Count returns the number of rows in sheet.
func (s *Store) Count(ctx context.Context, sheet string) (int, error) {
	layout, ok := layouts[sheet]
	if !ok {
		return 0, persistenceError("count", fmt.Sprintf("unknown sheet %q", sheet), nil)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM "+layout.Table).Scan(&n); err != nil {
		return 0, persistenceError("count", "count "+sheet, err)
	}
	return n, nil
}

func persistenceError(operation, message string, err error) error {
	return services.Wrap(services.ErrPersistence, "store", operation, message, err)
}
