package poller

import (
	"errors"
	"time"

	"wbwatch/internal/services"
)

// State is the scheduler's lifecycle state.
type State int32

const (
	Idle State = iota
	Cycling
)

func (s State) String() string {
	switch s {
	case Cycling:
		return "cycling"
	default:
		return "idle"
	}
}

// WarehouseReport summarizes one warehouse within a cycle.
type WarehouseReport struct {
	Warehouse string
	// Fetched is the number of new orders returned by the marketplace.
	Fetched int
	// Unseen is the number of fetched orders absent from the ledger.
	Unseen     int
	Recorded   int
	Recovered  int
	Incomplete int
	Notified   int
	// DeliveryFailures counts failed sends to individual recipients.
	DeliveryFailures int
	// Failed counts orders that could not be recorded or marked.
	Failed  int
	Skipped int
	Err     error
}

// OK reports whether the warehouse made progress this cycle.
func (r WarehouseReport) OK() bool {
	return r.Err == nil
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	CycleID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Warehouses []WarehouseReport
	// LoadErr is set when the WB or Access sheet could not be read.
	LoadErr error
	// NotStarted lists warehouses skipped because shutdown began.
	NotStarted []string
	// InvalidAccess counts Access rows skipped for a missing warehouse or a
	// non-numeric chat id.
	InvalidAccess int
	Blocked       bool
}

// Duration returns how long the cycle ran.
func (r CycleReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Totals sums the per-warehouse counters.
func (r CycleReport) Totals() WarehouseReport {
	var total WarehouseReport
	for _, wh := range r.Warehouses {
		total.Fetched += wh.Fetched
		total.Unseen += wh.Unseen
		total.Recorded += wh.Recorded
		total.Recovered += wh.Recovered
		total.Incomplete += wh.Incomplete
		total.Notified += wh.Notified
		total.DeliveryFailures += wh.DeliveryFailures
		total.Failed += wh.Failed
		total.Skipped += wh.Skipped
	}
	return total
}

// FailedWarehouses counts warehouses that ended with an error.
func (r CycleReport) FailedWarehouses() int {
	n := 0
	for _, wh := range r.Warehouses {
		if !wh.OK() {
			n++
		}
	}
	return n
}

// blockReason returns why the cycle made no progress, or nil when at least
// one warehouse did. A cycle is blocked when its sheets could not be loaded or
// every attempted warehouse failed with an auth or persistence error.
func (r CycleReport) blockReason() error {
	if r.LoadErr != nil {
		return r.LoadErr
	}
	if len(r.Warehouses) == 0 {
		return nil
	}
	var errs []error
	for _, wh := range r.Warehouses {
		if wh.Err == nil || !services.Blocking(wh.Err) {
			return nil
		}
		errs = append(errs, wh.Err)
	}
	return errors.Join(errs...)
}
