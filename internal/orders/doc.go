// Package orders defines the domain types shared by the poller: orders and
// their enrichment status flags, warehouses, access entries, product list
// entries, and ledger entries.
package orders
