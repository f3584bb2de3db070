package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wbwatch/internal/config"
	"wbwatch/internal/orders"
	"wbwatch/internal/recipients"
	"wbwatch/internal/sheets"
)

func newWarehousesCommand(ctx *commandContext) *cobra.Command {
	warehousesCmd := &cobra.Command{
		Use:   "warehouses",
		Short: "List WB sheet rows and their Telegram recipients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *sheets.Store) error {
				warehouses, err := store.Warehouses(cmd.Context())
				if err != nil {
					return err
				}
				access, err := store.AccessEntries(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(warehouses) == 0 {
					fmt.Fprintln(out, "No warehouses configured")
					return nil
				}

				resolver := recipients.New(access)
				rows := make([][]string, 0, len(warehouses))
				for _, wh := range warehouses {
					rows = append(rows, []string{
						wh.City,
						wh.Name,
						orders.MaskAPIKey(wh.APIKey),
						yesNo(wh.Usable()),
						joinIDs(resolver.Resolve(wh.Name)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"City", "Warehouse", "API Key", "Polled", "Recipients"},
					rows,
					nil,
				))
				return nil
			})
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <city> <warehouse> <api-key>",
		Short: "Add a WB sheet row or replace the city and key of an existing one",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			wh := orders.Warehouse{City: args[0], Name: args[1], APIKey: args[2]}
			if !wh.Usable() {
				return fmt.Errorf("warehouse name and api key are required")
			}
			return ctx.withStore(func(_ *config.Config, store *sheets.Store) error {
				if err := store.UpsertWarehouse(cmd.Context(), wh); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Warehouse %s saved (key %s)\n", wh.Name, orders.MaskAPIKey(wh.APIKey))
				return nil
			})
		},
	}

	warehousesCmd.AddCommand(addCmd)
	return warehousesCmd
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
