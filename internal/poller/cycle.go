package poller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wbwatch/internal/enrichment"
	"wbwatch/internal/logging"
	"wbwatch/internal/notifications"
	"wbwatch/internal/orders"
	"wbwatch/internal/recipients"
	"wbwatch/internal/services"
	"wbwatch/internal/sheets"
)

func newCycleID() string {
	return uuid.NewString()
}

// cycle polls every usable warehouse once. Warehouses already running when
// ctx is cancelled finish on a detached context bounded by warehouseTimeout;
// the rest are not started.
func (s *Scheduler) cycle(ctx context.Context) CycleReport {
	report := CycleReport{CycleID: s.deps.NewCycleID(), StartedAt: s.deps.Clock()}
	ctx = services.WithCycleID(ctx, report.CycleID)
	logger := logging.WithContext(ctx, s.logger)

	warehouses, access, err := s.load(ctx)
	if err != nil {
		report.LoadErr = err
		report.FinishedAt = s.deps.Clock()
		logging.ErrorWithContext(logger, "load warehouses failed", "sheets_load_failed",
			append(logging.ErrorAttrs(err),
				logging.Hint("check the sheets database"))...)
		return report
	}
	if len(warehouses) == 0 {
		logging.WarnWithContext(logger, "no warehouses configured", "no_warehouses",
			logging.Hint("add rows to the WB sheet or [[warehouses]] to config"),
			logging.Impact("nothing is polled"),
		)
	}

	report.InvalidAccess = s.reportInvalidAccess(ctx, access)
	resolver := recipients.New(access)

	enrich := s.enricher.NewCycle()
	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	group.SetLimit(s.warehouseLimit)
	for _, wh := range warehouses {
		if ctx.Err() != nil {
			report.NotStarted = append(report.NotStarted, wh.Name)
			continue
		}
		group.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				report.NotStarted = append(report.NotStarted, wh.Name)
				mu.Unlock()
				return nil
			}
			whCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.warehouseTimeout)
			defer cancel()
			result := s.pollWarehouse(whCtx, ctx, wh, resolver, enrich)
			mu.Lock()
			report.Warehouses = append(report.Warehouses, result)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	report.FinishedAt = s.deps.Clock()

	totals := report.Totals()
	logger.Info("poll cycle complete",
		logging.Int("warehouses", len(report.Warehouses)),
		logging.Int("warehouses_failed", report.FailedWarehouses()),
		logging.Int("warehouses_not_started", len(report.NotStarted)),
		logging.Int("orders_fetched", totals.Fetched),
		logging.Int("orders_new", totals.Unseen),
		logging.Int("orders_recorded", totals.Recorded),
		logging.Int("orders_recovered", totals.Recovered),
		logging.Int("orders_incomplete", totals.Incomplete),
		logging.Int("notifications_sent", totals.Notified),
		logging.Int("delivery_failures", totals.DeliveryFailures),
		logging.Duration("duration", report.Duration()),
	)
	return report
}

func (s *Scheduler) load(ctx context.Context) ([]orders.Warehouse, []orders.AccessEntry, error) {
	rows, err := s.deps.Store.Warehouses(ctx)
	if err != nil {
		return nil, nil, err
	}
	access, err := s.deps.Store.AccessEntries(ctx)
	if err != nil {
		return nil, nil, err
	}

	usable := make([]orders.Warehouse, 0, len(rows))
	for _, wh := range rows {
		if !wh.Usable() {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "skipping warehouse without name or api key", "warehouse_unusable",
				logging.String("city", wh.City),
				logging.Warehouse(wh.Name),
				logging.Impact("warehouse is not polled"),
			)
			continue
		}
		usable = append(usable, wh)
	}
	return usable, access, nil
}

// reportInvalidAccess logs every Access row that cannot receive messages and
// returns how many there were.
func (s *Scheduler) reportInvalidAccess(ctx context.Context, access []orders.AccessEntry) int {
	invalid := 0
	for _, entry := range access {
		if entry.Valid() {
			continue
		}
		invalid++
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "skipping access row without warehouse or numeric chat id", "access_invalid",
			logging.Warehouse(entry.WarehouseName),
			logging.String(logging.FieldRecipient, entry.Recipient),
			logging.Hint("recipient_id must be a Telegram chat id"),
			logging.Impact("recipient gets no notifications"),
		)
	}
	return invalid
}

// pollWarehouse fetches, filters and processes one warehouse on the detached
// ctx. stop is the cycle's own context; once it is done the warehouse still
// finishes the orders it already fetched.
func (s *Scheduler) pollWarehouse(ctx, stop context.Context, wh orders.Warehouse, resolver *recipients.Resolver, enrich *enrichment.Cycle) WarehouseReport {
	ctx = services.WithWarehouse(ctx, wh.Name)
	logger := logging.WithContext(ctx, s.logger)
	result := WarehouseReport{Warehouse: wh.Name}

	fetched, err := s.deps.Source.FetchNewOrders(ctx, wh)
	if err != nil {
		result.Err = err
		logging.ErrorWithContext(logger, "fetch new orders failed", "fetch_failed",
			append(logging.ErrorAttrs(err),
				logging.Hint(fetchHint(err)))...)
		return result
	}
	result.Fetched = len(fetched)

	unseen, err := s.deps.Ledger.FilterUnseen(ctx, fetched)
	if err != nil {
		result.Err = err
		logging.ErrorWithContext(logger, "ledger lookup failed", "ledger_failed",
			append(logging.ErrorAttrs(err),
				logging.Hint("check the ledger backend"))...)
		return result
	}
	result.Unseen = len(unseen)
	if len(unseen) == 0 {
		logger.Debug("no new orders", logging.Int("fetched", len(fetched)))
		return result
	}
	if stop.Err() != nil {
		logger.Info("shutdown requested, finishing in-flight warehouse", logging.Int("orders", len(unseen)))
	}

	recipientIDs := resolver.Resolve(wh.Name)
	var (
		mu       sync.Mutex
		firstErr error
		group    errgroup.Group
	)
	group.SetLimit(s.orderLimit)
	for _, order := range unseen {
		group.Go(func() error {
			outcome := s.processOrder(ctx, order, recipientIDs, enrich)
			mu.Lock()
			defer mu.Unlock()
			outcome.apply(&result)
			if outcome.err != nil && firstErr == nil {
				firstErr = outcome.err
			}
			return nil
		})
	}
	_ = group.Wait()

	// Every order failing on the store means the warehouse made no progress.
	if firstErr != nil && result.Recorded == 0 && result.Recovered == 0 {
		result.Err = firstErr
	}
	return result
}

type orderOutcome struct {
	recorded         bool
	recovered        bool
	incomplete       bool
	notified         int
	deliveryFailures int
	err              error
}

func (o orderOutcome) apply(r *WarehouseReport) {
	switch {
	case o.recovered:
		r.Recovered++
	case o.recorded:
		r.Recorded++
	}
	if o.incomplete {
		r.Incomplete++
	}
	r.Notified += o.notified
	r.DeliveryFailures += o.deliveryFailures
	if o.err != nil {
		r.Failed++
	}
}

// processOrder records, notifies and marks one unseen order. The Tasks row
// is written before any notification and the ledger is marked last, so a
// crash in between leaves the order recoverable without a second message.
func (s *Scheduler) processOrder(ctx context.Context, order orders.Order, recipientIDs []int64, enrich *enrichment.Cycle) orderOutcome {
	ctx = services.WithOrderID(ctx, order.OrderID)
	logger := logging.WithContext(ctx, s.logger)
	var outcome orderOutcome

	exists, err := s.deps.Store.RowExists(services.WithStage(ctx, "record"), sheets.Tasks, order.OrderID, order.WarehouseName)
	if err != nil {
		outcome.err = err
		logging.ErrorWithContext(logger, "tasks lookup failed", "record_failed",
			append(logging.ErrorAttrs(err), logging.Stage("record"))...)
		return outcome
	}
	if exists {
		outcome.recovered = true
		logger.Info("order already recorded, marking processed without notifying")
		if err := s.mark(ctx, logger, order); err != nil {
			outcome.err = err
		}
		return outcome
	}

	enriched := enrich.Enrich(services.WithStage(ctx, "enrich"), order)
	outcome.incomplete = !enriched.Status.IsComplete()

	if err := s.deps.Store.AppendRow(services.WithStage(ctx, "record"), sheets.Tasks, sheets.TaskFields(enriched, s.deps.Clock())); err != nil {
		outcome.err = err
		logging.ErrorWithContext(logger, "record order failed", "record_failed",
			append(logging.ErrorAttrs(err),
				logging.Stage("record"),
				logging.Hint("order stays unseen and is retried next cycle"))...)
		return outcome
	}
	outcome.recorded = true

	outcome.notified, outcome.deliveryFailures = s.notify(ctx, logger, enriched, recipientIDs)

	if err := s.mark(ctx, logger, enriched); err != nil {
		outcome.err = err
	}

	logger.Info("order processed",
		logging.String("status", enriched.Status.String()),
		logging.Int("recipients", len(recipientIDs)),
		logging.Int("notified", outcome.notified),
	)
	return outcome
}

func (s *Scheduler) notify(ctx context.Context, logger *slog.Logger, order orders.Order, recipientIDs []int64) (sent, failed int) {
	if len(recipientIDs) == 0 {
		logger.Info("no recipients for warehouse; order recorded only")
		return 0, 0
	}
	ctx = services.WithStage(ctx, "notify")
	msg := notifications.OrderMessage(order)
	for _, id := range recipientIDs {
		if err := s.deps.Sender.Send(ctx, id, msg); err != nil {
			failed++
			logging.WarnWithContext(logger, "notification failed", "delivery_failed",
				append(logging.ErrorAttrs(err),
					logging.Recipient(id),
					logging.Stage("notify"),
					logging.Impact("recipient misses this order"))...)
			continue
		}
		sent++
	}
	return sent, failed
}

func (s *Scheduler) mark(ctx context.Context, logger *slog.Logger, order orders.Order) error {
	if err := s.deps.Ledger.MarkProcessed(services.WithStage(ctx, "mark"), order); err != nil {
		logging.ErrorWithContext(logger, "mark processed failed", "ledger_failed",
			append(logging.ErrorAttrs(err),
				logging.Stage("mark"),
				logging.Hint("the Tasks row prevents a second notification; marking is retried next cycle"))...)
		return err
	}
	return nil
}

func fetchHint(err error) string {
	switch services.Kind(err) {
	case "auth":
		return "check the warehouse api key in the WB sheet"
	case "rate_limited":
		return "warehouse skipped this cycle; lower poller.warehouse_concurrency if this repeats"
	default:
		return "warehouse skipped this cycle"
	}
}
