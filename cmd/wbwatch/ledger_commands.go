package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wbwatch/internal/config"
	"wbwatch/internal/ledger"
	"wbwatch/internal/orders"
	"wbwatch/internal/sheets"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the processed-orders ledger",
	}
	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerCheckCommand(ctx))
	return ledgerCmd
}

func (c *commandContext) withLedger(ctx context.Context, fn func(ledger.Ledger) error) error {
	return c.withStore(func(cfg *config.Config, store *sheets.Store) error {
		led, err := ledger.Open(ctx, cfg, store)
		if err != nil {
			return err
		}
		defer led.Close()
		return fn(led)
	})
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently processed orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(cmd.Context(), func(led ledger.Ledger) error {
				entries, err := led.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No processed orders")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.OrderID,
						e.WarehouseName,
						orders.MaskAPIKey(e.APIKey),
						formatTimestamp(e.ProcessedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Order", "Warehouse", "API Key", "Processed"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show")
	return cmd
}

func newLedgerCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <warehouse> <order>",
		Short: "Report whether an order was processed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := orders.Key{Warehouse: strings.TrimSpace(args[0]), OrderID: strings.TrimSpace(args[1])}
			return ctx.withLedger(cmd.Context(), func(led ledger.Ledger) error {
				seen, err := led.Seen(cmd.Context(), key)
				if err != nil {
					return err
				}
				state := "not processed"
				if seen {
					state = "processed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Order %s at %s: %s\n", key.OrderID, key.Warehouse, state)
				return nil
			})
		},
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
