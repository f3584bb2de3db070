package sheets

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"wbwatch/internal/config"
	"wbwatch/internal/orders"
)

// Task is one row of the Tasks sheet.
type Task struct {
	TaskNo        string
	Photo         string
	ProductName   string
	ArticleID     string
	Sticker       string
	Status        string
	ProcessedDate time.Time
	Warehouse     string
}

// TaskFields renders an enriched order as a Tasks row.
func TaskFields(order orders.Order, processedAt time.Time) []string {
	return []string{
		order.OrderID,
		order.PhotoURL,
		order.ProductName,
		order.Article(),
		string(order.Sticker),
		order.Status.String(),
		formatTime(processedAt),
		order.WarehouseName,
	}
}

// ProcessedFields renders a ledger entry as a ProcessedOrders row.
func ProcessedFields(entry orders.LedgerEntry) []string {
	return []string{
		entry.OrderID,
		entry.WarehouseName,
		orders.MaskAPIKey(entry.APIKey),
		formatTime(entry.ProcessedAt),
	}
}

// Warehouses returns every WB row in insertion order.
func (s *Store) Warehouses(ctx context.Context) ([]orders.Warehouse, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT city, warehouse_name, api_key FROM wb ORDER BY id")
	if err != nil {
		return nil, persistenceError("read_sheet", "query "+WB, err)
	}
	defer rows.Close()

	var out []orders.Warehouse
	for rows.Next() {
		var wh orders.Warehouse
		if err := rows.Scan(&wh.City, &wh.Name, &wh.APIKey); err != nil {
			return nil, persistenceError("read_sheet", "scan "+WB, err)
		}
		out = append(out, wh)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("read_sheet", "iterate "+WB, err)
	}
	return out, nil
}

// AccessEntries returns every Access row. Rows whose recipient is not a
// numeric chat id are returned with a zero RecipientID; see AccessEntry.Valid.
func (s *Store) AccessEntries(ctx context.Context) ([]orders.AccessEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT warehouse_name, recipient_id FROM access ORDER BY id")
	if err != nil {
		return nil, persistenceError("read_sheet", "query "+Access, err)
	}
	defer rows.Close()

	var out []orders.AccessEntry
	for rows.Next() {
		var warehouse, recipient string
		if err := rows.Scan(&warehouse, &recipient); err != nil {
			return nil, persistenceError("read_sheet", "scan "+Access, err)
		}
		entry := orders.AccessEntry{
			WarehouseName: strings.TrimSpace(warehouse),
			Recipient:     strings.TrimSpace(recipient),
		}
		if id, err := strconv.ParseInt(entry.Recipient, 10, 64); err == nil {
			entry.RecipientID = id
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("read_sheet", "iterate "+Access, err)
	}
	return out, nil
}

// RecentTasks returns up to limit Tasks rows, newest first.
func (s *Store) RecentTasks(ctx context.Context, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_no, photo, product_name, article_id, sticker, status, processed_date, warehouse
         FROM tasks ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, persistenceError("read_sheet", "query "+Tasks, err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var task Task
		var processed string
		if err := rows.Scan(&task.TaskNo, &task.Photo, &task.ProductName, &task.ArticleID,
			&task.Sticker, &task.Status, &processed, &task.Warehouse); err != nil {
			return nil, persistenceError("read_sheet", "scan "+Tasks, err)
		}
		task.ProcessedDate = parseTime(processed)
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("read_sheet", "iterate "+Tasks, err)
	}
	return out, nil
}

// TaskStatusCompleted marks a Tasks row whose order was handed over.
const TaskStatusCompleted = "completed"

const (
	upsertWarehouseSQL = `INSERT INTO wb (city, warehouse_name, api_key) VALUES (?, ?, ?)
         ON CONFLICT(warehouse_name) DO UPDATE SET city = excluded.city, api_key = excluded.api_key`
	grantAccessSQL = "INSERT OR IGNORE INTO access (warehouse_name, recipient_id) VALUES (?, ?)"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertWarehouse(ctx context.Context, db execer, wh orders.Warehouse) error {
	_, err := db.ExecContext(ctx, upsertWarehouseSQL,
		strings.TrimSpace(wh.City), strings.TrimSpace(wh.Name), strings.TrimSpace(wh.APIKey))
	return err
}

func grantAccess(ctx context.Context, db execer, warehouse string, recipientID int64) error {
	_, err := db.ExecContext(ctx, grantAccessSQL, strings.TrimSpace(warehouse), strconv.FormatInt(recipientID, 10))
	return err
}

// UpsertWarehouse writes a WB row, replacing city and key of an existing name.
func (s *Store) UpsertWarehouse(ctx context.Context, wh orders.Warehouse) error {
	if err := upsertWarehouse(ctx, s.db, wh); err != nil {
		return persistenceError("upsert_warehouse", wh.Name, err)
	}
	return nil
}

// GrantAccess adds an Access row; granting twice is a no-op.
func (s *Store) GrantAccess(ctx context.Context, entry orders.AccessEntry) error {
	if err := grantAccess(ctx, s.db, entry.WarehouseName, entry.RecipientID); err != nil {
		return persistenceError("grant_access", entry.WarehouseName, err)
	}
	return nil
}

// SetTaskStatus overwrites the status column of one Tasks row. It reports
// false when no row matches.
func (s *Store) SetTaskStatus(ctx context.Context, warehouse, orderID, status string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE tasks SET status = ? WHERE task_no = ? AND warehouse = ?",
		status, strings.TrimSpace(orderID), strings.TrimSpace(warehouse))
	if err != nil {
		return false, persistenceError("set_task_status", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistenceError("set_task_status", "rows affected", err)
	}
	return n > 0, nil
}

// RevokeAccess removes an Access row.
func (s *Store) RevokeAccess(ctx context.Context, entry orders.AccessEntry) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM access WHERE warehouse_name = ? AND recipient_id = ?",
		entry.WarehouseName, strconv.FormatInt(entry.RecipientID, 10))
	if err != nil {
		return false, persistenceError("revoke_access", entry.WarehouseName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistenceError("revoke_access", "rows affected", err)
	}
	return n > 0, nil
}

// Seed applies the [[warehouses]] and [[access]] entries of cfg.
func (s *Store) Seed(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceError("seed", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, wh := range cfg.Warehouses {
		if err := upsertWarehouse(ctx, tx, orders.Warehouse{City: wh.City, Name: wh.Name, APIKey: wh.APIKey}); err != nil {
			return persistenceError("seed", "warehouse "+wh.Name, err)
		}
	}
	for _, entry := range cfg.Access {
		if err := grantAccess(ctx, tx, entry.Warehouse, entry.RecipientID); err != nil {
			return persistenceError("seed", "access "+entry.Warehouse, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return persistenceError("seed", "commit", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return t
}

// ProcessedOrders returns up to limit ProcessedOrders rows, newest first.
func (s *Store) ProcessedOrders(ctx context.Context, limit int) ([]orders.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, warehouse, api_key, processed_date
         FROM processed_orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, persistenceError("read_sheet", "query "+ProcessedOrders, err)
	}
	defer rows.Close()

	var out []orders.LedgerEntry
	for rows.Next() {
		var entry orders.LedgerEntry
		var processed string
		if err := rows.Scan(&entry.OrderID, &entry.WarehouseName, &entry.APIKey, &processed); err != nil {
			return nil, persistenceError("read_sheet", "scan "+ProcessedOrders, err)
		}
		entry.ProcessedAt = parseTime(processed)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("read_sheet", "iterate "+ProcessedOrders, err)
	}
	return out, nil
}
