package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"wbwatch/internal/daemon"
	"wbwatch/internal/daemonrun"
	"wbwatch/internal/poller"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the poller in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Include source locations in log output")
	return cmd
}

func newOnceCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := daemonrun.NewLogger(cfg, daemonrun.Options{LogLevel: logLevel})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rt, err := daemonrun.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			d, err := daemon.New(cfg, rt.Poller, rt.Alerts, logger)
			if err != nil {
				return err
			}
			report, err := d.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			printCycleReport(cmd.OutOrStdout(), report)
			if report.Blocked {
				return errors.New("poll cycle blocked: no warehouse made progress")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level for the cycle")
	return cmd
}

func printCycleReport(out io.Writer, report poller.CycleReport) {
	fmt.Fprintf(out, "Cycle %s finished in %s\n", report.CycleID, report.Duration().Round(time.Millisecond))
	if report.LoadErr != nil {
		fmt.Fprintf(out, "Sheets could not be loaded: %v\n", report.LoadErr)
		return
	}
	if len(report.Warehouses) == 0 {
		fmt.Fprintln(out, "No warehouses polled")
		return
	}

	rows := make([][]string, 0, len(report.Warehouses)+1)
	for _, wh := range report.Warehouses {
		rows = append(rows, warehouseReportRow(wh.Warehouse, wh))
	}
	rows = append(rows, warehouseReportRow("TOTAL", report.Totals()))
	fmt.Fprintln(out, renderTable(
		[]string{"Warehouse", "Fetched", "New", "Recorded", "Recovered", "Incomplete", "Notified", "Failed", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	for _, name := range report.NotStarted {
		fmt.Fprintf(out, "Not started: %s\n", name)
	}
}

func warehouseReportRow(name string, wh poller.WarehouseReport) []string {
	errText := ""
	if wh.Err != nil {
		errText = wh.Err.Error()
	}
	return []string{
		name,
		strconv.Itoa(wh.Fetched),
		strconv.Itoa(wh.Unseen),
		strconv.Itoa(wh.Recorded),
		strconv.Itoa(wh.Recovered),
		strconv.Itoa(wh.Incomplete),
		strconv.Itoa(wh.Notified),
		strconv.Itoa(wh.Failed + wh.DeliveryFailures),
		errText,
	}
}
