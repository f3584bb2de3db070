package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"wbwatch/internal/config"
	"wbwatch/internal/daemon"
	"wbwatch/internal/logging"
	"wbwatch/internal/preflight"
	"wbwatch/internal/services"
)

const startAlertTimeout = 10 * time.Second

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the wbwatch daemon and blocks until a termination signal
// (returns nil) or a fatal poller exit (returns an error wrapping
// services.ErrFatal).
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := NewLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logConfigSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Open(signalCtx, cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "open runtime failed", "runtime_open_failed",
			append(logging.ErrorAttrs(err),
				logging.Hint("check the data directory and ledger settings"))...)
		return fmt.Errorf("%w: %w", services.ErrFatal, err)
	}
	defer rt.Close()

	if err := checkStartup(signalCtx, cfg, rt, logger); err != nil {
		return err
	}

	d, err := daemon.New(cfg, rt.Poller, rt.Alerts, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			append(logging.ErrorAttrs(err),
				logging.Hint("stop the other wbwatch process or remove a stale lock"),
				logging.Impact("no orders are polled by this process"))...)
		return err
	}
	notifyStarted(signalCtx, rt, logger)

	select {
	case <-signalCtx.Done():
		logger.Info("wbwatch daemon shutting down")
		d.Stop()
		return nil
	case <-d.Done():
		if err := d.Err(); err != nil {
			return err
		}
		return nil
	}
}

// NewLogger builds the process logger from config, letting opts override the level.
func NewLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if opts.LogLevel == "" && !opts.Development {
		return logging.NewFromConfig(cfg)
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	outputs := []string{"stdout"}
	errorOutputs := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		logPath := filepath.Join(cfg.Paths.LogDir, "wbwatch.log")
		outputs = append(outputs, logPath)
		errorOutputs = append(errorOutputs, logPath)
	}
	return logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: errorOutputs,
		Development:      opts.Development,
	})
}

// checkStartup runs preflight and turns blocking failures into a fatal error
// after a best-effort operator alert.
func checkStartup(ctx context.Context, cfg *config.Config, rt *Runtime, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, cfg, rt.Store)
	for _, r := range results {
		switch {
		case r.Passed:
			logger.Debug("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
		case r.Advisory:
			logging.WarnWithContext(logger, "preflight check failed", "preflight_advisory",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.Impact("startup continues"),
			)
		default:
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.Hint("fix the configuration and restart"),
			)
		}
	}

	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	err := fmt.Errorf("%w: %w: preflight failed: %s", services.ErrFatal, services.ErrConfiguration, preflight.Names(failed))
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), startAlertTimeout)
	defer cancel()
	if alertErr := rt.Alerts.NotifyFatal(alertCtx, err); alertErr != nil {
		logger.Warn("operator alert failed", logging.Error(alertErr))
	}
	return err
}

func notifyStarted(ctx context.Context, rt *Runtime, logger *slog.Logger) {
	warehouses, err := rt.Store.Warehouses(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "startup notification skipped", "start_alert_skipped",
			append(logging.ErrorAttrs(err),
				logging.Hint("check the sheets database"),
				logging.Impact("operator is not told the poller started"))...)
		return
	}
	alertCtx, cancel := context.WithTimeout(ctx, startAlertTimeout)
	defer cancel()
	if err := rt.Alerts.NotifyStarted(alertCtx, len(warehouses)); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("startup notification failed", logging.Error(err))
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("config snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Duration("poll_interval", cfg.PollInterval()),
		logging.Int("warehouse_concurrency", cfg.Poller.WarehouseConcurrency),
		logging.Int("order_concurrency", cfg.Poller.OrderConcurrency),
		logging.Int("fatal_after_cycles", cfg.Poller.FatalAfterCycles),
		logging.String("ledger_backend", cfg.Ledger.Backend),
		logging.Bool("telegram_dry_run", cfg.Telegram.DryRun),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.String("store", cfg.StorePath()),
	)
}
