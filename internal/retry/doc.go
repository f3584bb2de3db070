// Package retry holds the backoff policy composed into the Wildberries client.
//
// A Policy is a plain value: attempt budgets per failure class, a doubling
// delay curve with a cap, optional jitter, and an injectable sleeper. It is
// independent of the poller's own ticker so cycle timing and request retries
// never share state.
package retry
