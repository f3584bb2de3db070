package preflight

import (
	"context"
	"strings"

	"wbwatch/internal/config"
	"wbwatch/internal/orders"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Advisory results are reported but never block startup.
	Advisory bool
}

// Store is the subset of the sheets store the checks read.
type Store interface {
	Ping(ctx context.Context) error
	Warehouses(ctx context.Context) ([]orders.Warehouse, error)
}

// RunAll executes every startup check for the given config. store may be nil
// when the database could not be opened; the store checks then fail.
func RunAll(ctx context.Context, cfg *config.Config, store Store) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckStore(ctx, store),
		CheckWarehouses(ctx, store),
		CheckTelegram(ctx, cfg.Telegram),
		CheckNtfy(cfg.Notifications),
	}
	return results
}

// Failed returns the blocking results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Advisory {
			failed = append(failed, r)
		}
	}
	return failed
}

// Names joins result names for log and error messages.
func Names(results []Result) string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}
