// Package daemon coordinates the long-running wbwatch process.
//
// It wraps the poller in a lifecycle with flock-based locking so that only one
// poller touches the ledger at a time. Start launches the poll loop in the
// background; Done and Err expose a fatal exit so the caller can terminate the
// process with a non-zero status. RunOnce takes the same lock for single
// cycles started from the CLI.
//
// Keep orchestration logic here: the poll cycle itself lives in the poller
// package while the daemon focuses on startup, shutdown and locking.
package daemon
