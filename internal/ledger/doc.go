// Package ledger implements the dedup ledger: the persisted set of
// (order ID, warehouse) pairs that have been recorded and notified.
//
// Two backends exist. SQLite stores entries in the ProcessedOrders sheet and
// is the default; Redis stores one SETNX key per entry for deployments that
// already run Redis. The poller calls FilterUnseen before enrichment and
// MarkProcessed only after the Tasks row is durable. A failed mark leaves the
// order eligible next cycle, so delivery degrades to at-least-once rather than
// losing the order.
package ledger
