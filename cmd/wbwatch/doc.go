// Package main hosts the wbwatch CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the poller in the foreground or for a
// single cycle, inspects the sheets store and the dedup ledger, reports
// process and credential health, and scaffolds configuration. Subcommands
// open the store directly; none of them talk to a running daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
