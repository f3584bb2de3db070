// Package sheets persists the tabular store in SQLite.
//
// Four sheets exist: Tasks (one row per recorded order), ProcessedOrders (the
// dedup ledger when the sqlite backend is selected), WB (warehouses and their
// API keys) and Access (warehouse to Telegram chat id). Rows are appended
// positionally through AppendRow and looked up by key through RowExists; every
// sheet has a unique key so appending is idempotent.
//
// Schema changes bump the version in schema.go; operators move the old
// database aside to adopt the new schema. Every failure is tagged with
// services.ErrPersistence.
package sheets
