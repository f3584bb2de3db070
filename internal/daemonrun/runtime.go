package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wbwatch/internal/config"
	"wbwatch/internal/ledger"
	"wbwatch/internal/notifications"
	"wbwatch/internal/poller"
	"wbwatch/internal/sheets"
	"wbwatch/internal/wb"
)

// Runtime holds the collaborators of one wbwatch process.
type Runtime struct {
	Store  *sheets.Store
	Ledger ledger.Ledger
	Client *wb.Client
	Sender notifications.Sender
	Alerts notifications.Service
	Poller *poller.Scheduler
}

// Open opens the sheets store, seeds it from config, opens the ledger and
// wires the poller.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	store, err := sheets.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open sheets store: %w", err)
	}
	if err := store.Seed(ctx, cfg); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed sheets: %w", err)
	}
	led, err := ledger.Open(ctx, cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	rt := &Runtime{
		Store:  store,
		Ledger: led,
		Client: wb.New(cfg, wb.WithLogger(logger)),
		Sender: notifications.NewSender(cfg, logger),
		Alerts: notifications.NewService(cfg),
	}
	rt.Poller = poller.New(cfg, poller.Dependencies{
		Source: rt.Client,
		Store:  store,
		Ledger: led,
		Sender: rt.Sender,
		Alerts: rt.Alerts,
		Logger: logger,
	})
	return rt, nil
}

// Close closes the ledger and the store.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.Ledger.Close(), r.Store.Close())
}
