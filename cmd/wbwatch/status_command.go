package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wbwatch/internal/config"
	"wbwatch/internal/daemon"
	"wbwatch/internal/preflight"
	"wbwatch/internal/sheets"
)

type statusReport struct {
	Running    bool               `json:"running"`
	PID        int                `json:"pid,omitempty"`
	StorePath  string             `json:"store_path"`
	Ledger     string             `json:"ledger_backend"`
	Warehouses int                `json:"warehouses"`
	Tasks      int                `json:"tasks"`
	Processed  int                `json:"processed_orders"`
	StoreErr   string             `json:"store_error,omitempty"`
	Checks     []preflight.Result `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show poller, store and credential health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report statusReport
			err := ctx.withStore(func(cfg *config.Config, store *sheets.Store) error {
				var err error
				report, err = collectStatus(cmd.Context(), cfg, store)
				return err
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			for _, line := range renderStatus(report, shouldColorize(out)) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config, store *sheets.Store) (statusReport, error) {
	report := statusReport{
		StorePath: store.Path(),
		Ledger:    cfg.Ledger.Backend,
	}
	running, err := daemon.LockHeld(cfg.LockPath())
	if err != nil {
		return report, err
	}
	report.Running = running
	if running {
		report.PID = readPID(cfg.PIDPath())
	}

	var errs []string
	for _, count := range []struct {
		sheet string
		dst   *int
	}{
		{sheets.WB, &report.Warehouses},
		{sheets.Tasks, &report.Tasks},
		{sheets.ProcessedOrders, &report.Processed},
	} {
		n, err := store.Count(ctx, count.sheet)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		*count.dst = n
	}
	report.StoreErr = strings.Join(errs, "; ")
	report.Checks = preflight.RunAll(ctx, cfg, store)
	return report, nil
}

func renderStatus(report statusReport, colorize bool) []string {
	lines := renderSectionHeader("Poller", colorize)
	if report.Running {
		msg := "running"
		if report.PID > 0 {
			msg = fmt.Sprintf("running (pid %d)", report.PID)
		}
		lines = append(lines, renderStatusLine("Poller", statusOK, msg, colorize))
	} else {
		lines = append(lines, renderStatusLine("Poller", statusWarn, "not running", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Store", colorize)...)
	lines = append(lines,
		renderStatusLine("Database", statusInfo, report.StorePath, colorize),
		renderStatusLine("Ledger backend", statusInfo, report.Ledger, colorize),
		renderStatusLine("Warehouses", statusInfo, strconv.Itoa(report.Warehouses), colorize),
		renderStatusLine("Tasks", statusInfo, strconv.Itoa(report.Tasks), colorize),
		renderStatusLine("Processed orders", statusInfo, strconv.Itoa(report.Processed), colorize),
	)
	if report.StoreErr != "" {
		lines = append(lines, renderStatusLine("Store errors", statusError, report.StoreErr, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, check := range report.Checks {
		kind := statusOK
		switch {
		case check.Passed:
		case check.Advisory:
			kind = statusWarn
		default:
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return lines
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
