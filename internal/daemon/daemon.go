package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"wbwatch/internal/config"
	"wbwatch/internal/logging"
	"wbwatch/internal/notifications"
	"wbwatch/internal/poller"
	"wbwatch/internal/services"
)

// ErrAlreadyRunning is returned when another process holds the poller lock.
var ErrAlreadyRunning = errors.New("another wbwatch poller is already running")

// Runner is the poll loop driven by the daemon.
type Runner interface {
	Run(ctx context.Context) error
	RunOnce(ctx context.Context) (poller.CycleReport, error)
	Status() poller.Status
}

// Daemon runs the poller in the background and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	poller Runner
	alerts notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	Poller        poller.Status
	StorePath     string
	LockFilePath  string
	LedgerBackend string
}

// New constructs a daemon around the poller.
func New(cfg *config.Config, runner Runner, alerts notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || runner == nil {
		return nil, errors.New("daemon requires config and poller")
	}
	if alerts == nil {
		alerts = notifications.NewService(&config.Config{})
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		poller:   runner,
		alerts:   alerts,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the lock and launches the poll loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	d.mu.Lock()
	d.cancel = cancel
	d.done = done
	d.err = nil
	d.mu.Unlock()
	d.running.Store(true)

	go func() {
		defer close(done)
		err := d.poller.Run(runCtx)
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		if err != nil {
			logging.ErrorWithContext(d.logger, "poller stopped with error", "poller_fatal",
				append(logging.ErrorAttrs(err),
					logging.Impact("no orders are polled until restart"))...)
		}
	}()

	d.logger.Info("wbwatch daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Done is closed when the poll loop exits. It is nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Err returns the error the poll loop exited with, if any.
func (d *Daemon) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Stop cancels the poll loop, waits for the running cycle to drain and
// releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("wbwatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// RunOnce runs a single cycle under the daemon lock.
func (d *Daemon) RunOnce(ctx context.Context) (poller.CycleReport, error) {
	if d.running.Load() {
		return poller.CycleReport{}, errors.New("daemon already running")
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return poller.CycleReport{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return poller.CycleReport{}, ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()
	return d.poller.RunOnce(ctx)
}

// TestNotification triggers a test operator alert using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.alerts.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:       d.running.Load(),
		Poller:        d.poller.Status(),
		StorePath:     d.cfg.StorePath(),
		LockFilePath:  d.lockPath,
		LedgerBackend: d.cfg.Ledger.Backend,
	}
}

// LockHeld reports whether some process currently holds the lock at path.
func LockHeld(path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, "daemon", "lock", path, err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}
