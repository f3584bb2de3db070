package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wbwatch/internal/config"
	"wbwatch/internal/enrichment"
	"wbwatch/internal/ledger"
	"wbwatch/internal/logging"
	"wbwatch/internal/notifications"
	"wbwatch/internal/orders"
	"wbwatch/internal/services"
)

// ErrCycleInProgress is returned by RunOnce when another cycle is running.
var ErrCycleInProgress = errors.New("poll cycle already in progress")

const (
	defaultInterval     = 5 * time.Minute
	minWarehouseTimeout = time.Minute
	alertTimeout        = 10 * time.Second
)

// Source is the Wildberries client as used by the poller.
type Source interface {
	enrichment.Source
	FetchNewOrders(ctx context.Context, wh orders.Warehouse) ([]orders.Order, error)
}

// Store is the tabular store as used by the poller.
type Store interface {
	Warehouses(ctx context.Context) ([]orders.Warehouse, error)
	AccessEntries(ctx context.Context) ([]orders.AccessEntry, error)
	AppendRow(ctx context.Context, sheet string, fields []string) error
	RowExists(ctx context.Context, sheet string, key ...string) (bool, error)
}

// Dependencies groups the collaborators of a Scheduler.
type Dependencies struct {
	Source Source
	Store  Store
	Ledger ledger.Ledger
	Sender notifications.Sender
	Alerts notifications.Service
	Logger *slog.Logger
	// Clock stamps Tasks rows; defaults to time.Now.
	Clock func() time.Time
	// NewCycleID defaults to a random UUID.
	NewCycleID func() string
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State          State
	Cycles         int64
	SkippedTicks   int64
	BlockedCycles  int
	LastReport     *CycleReport
	LastCycleStart time.Time
}

// Scheduler runs poll cycles on a fixed interval. At most one cycle runs at a
// time; ticks that arrive while a cycle runs are dropped.
type Scheduler struct {
	deps     Dependencies
	enricher *enrichment.Enricher
	logger   *slog.Logger

	interval         time.Duration
	warehouseLimit   int
	orderLimit       int
	fatalAfter       int
	warehouseTimeout time.Duration

	cycleMu sync.Mutex
	blocked atomic.Int32

	state        atomic.Int32
	cycles       atomic.Int64
	skippedTicks atomic.Int64

	reportMu   sync.RWMutex
	lastReport *CycleReport
}

// New constructs a scheduler from the [poller] config section.
func New(cfg *config.Config, deps Dependencies) *Scheduler {
	logger := logging.NewComponentLogger(deps.Logger, "poller")
	if deps.Alerts == nil {
		deps.Alerts = notifications.NewService(&config.Config{})
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewCycleID == nil {
		deps.NewCycleID = newCycleID
	}

	interval := cfg.PollInterval()
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		deps:             deps,
		enricher:         enrichment.New(deps.Source, deps.Logger),
		logger:           logger,
		interval:         interval,
		warehouseLimit:   max(cfg.Poller.WarehouseConcurrency, 1),
		orderLimit:       max(cfg.Poller.OrderConcurrency, 1),
		fatalAfter:       cfg.Poller.FatalAfterCycles,
		warehouseTimeout: max(interval, minWarehouseTimeout),
	}
}

// Status reports the current state and the last completed cycle.
func (s *Scheduler) Status() Status {
	s.reportMu.RLock()
	last := s.lastReport
	s.reportMu.RUnlock()

	st := Status{
		State:        State(s.state.Load()),
		Cycles:       s.cycles.Load(),
		SkippedTicks: s.skippedTicks.Load(),
	}
	if last != nil {
		copied := *last
		st.LastReport = &copied
		st.LastCycleStart = last.StartedAt
	}
	st.BlockedCycles = int(s.blocked.Load())
	return st
}

// Run executes a cycle immediately and then on every tick until ctx is
// cancelled (returns nil) or the poller gives up (returns an ErrFatal error).
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("poller started",
		logging.Duration("interval", s.interval),
		logging.Int("warehouse_concurrency", s.warehouseLimit),
		logging.Int("order_concurrency", s.orderLimit),
	)

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			if errors.Is(err, services.ErrFatal) {
				return err
			}
			if !errors.Is(err, ErrCycleInProgress) && ctx.Err() == nil {
				s.logger.Warn("poll cycle ended with error", logging.Args(logging.ErrorAttrs(err)...)...)
			}
		}

		select {
		case <-ticker.C:
			s.logger.Info("dropped tick that fired during the previous cycle",
				logging.Int64("skipped_ticks", s.skippedTicks.Add(1)))
		default:
		}

		select {
		case <-ctx.Done():
			s.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single cycle. It returns ErrCycleInProgress when a cycle
// is already running, and an error wrapping services.ErrFatal once
// fatal_after_cycles consecutive cycles were blocked.
func (s *Scheduler) RunOnce(ctx context.Context) (CycleReport, error) {
	if !s.cycleMu.TryLock() {
		return CycleReport{}, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	s.state.Store(int32(Cycling))
	defer s.state.Store(int32(Idle))

	report := s.cycle(ctx)
	s.cycles.Add(1)

	err := s.escalate(ctx, &report)

	s.reportMu.Lock()
	s.lastReport = &report
	s.reportMu.Unlock()
	return report, err
}

// escalate updates the blocked-cycle counter, alerts the operator and returns
// an ErrFatal error once the threshold is reached. Callers hold cycleMu.
func (s *Scheduler) escalate(ctx context.Context, report *CycleReport) error {
	// Failures caused by shutdown say nothing about the upstreams.
	if ctx.Err() != nil {
		return nil
	}
	reason := report.blockReason()
	if reason == nil {
		if prev := s.blocked.Swap(0); prev > 0 {
			s.logger.Info("poller unblocked", logging.Int("blocked_cycles", int(prev)))
		}
		return nil
	}

	report.Blocked = true
	blocked := int(s.blocked.Add(1))
	logger := logging.WithContext(services.WithCycleID(ctx, report.CycleID), s.logger)
	logging.ErrorWithContext(logger, "poll cycle blocked", "cycle_blocked",
		logging.Int("blocked_cycles", blocked),
		logging.Int("fatal_after_cycles", s.fatalAfter),
		logging.Error(reason),
		logging.String(logging.FieldErrorKind, services.Kind(reason)),
		logging.Hint("check warehouse API keys and the data directory"),
	)

	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()

	if s.fatalAfter <= 0 || blocked < s.fatalAfter {
		if err := s.deps.Alerts.NotifyCycleBlocked(alertCtx, blocked, s.fatalAfter, reason.Error()); err != nil {
			logger.Warn("operator alert failed", logging.Error(err))
		}
		return nil
	}

	fatal := fmt.Errorf("%w: %d consecutive blocked cycles: %w", services.ErrFatal, blocked, reason)
	if err := s.deps.Alerts.NotifyFatal(alertCtx, fatal); err != nil {
		logger.Warn("operator alert failed", logging.Error(err))
	}
	return fatal
}
