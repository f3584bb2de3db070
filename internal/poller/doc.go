// Package poller drives the fixed-interval poll loop.
//
// Each cycle loads the WB and Access sheets, then polls warehouses in a
// bounded pool. For every warehouse it fetches new orders, drops those already
// in the ledger, and runs each remaining order through
// enrich -> record (Tasks) -> notify recipients -> mark processed, again in a
// bounded pool.
//
// Cycles never overlap. A stop request prevents new warehouses from starting
// while running ones finish. Consecutive cycles that make no progress because
// of rejected credentials or an unusable store are counted; once
// poller.fatal_after_cycles is reached the operator is alerted and Run returns
// an error wrapping services.ErrFatal.
package poller
