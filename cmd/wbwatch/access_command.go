package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wbwatch/internal/config"
	"wbwatch/internal/orders"
	"wbwatch/internal/sheets"
)

func newAccessCommand(ctx *commandContext) *cobra.Command {
	accessCmd := &cobra.Command{
		Use:   "access",
		Short: "Manage which Telegram chats receive a warehouse's orders",
	}

	grantCmd := &cobra.Command{
		Use:   "grant <warehouse> <chat-id>",
		Short: "Send a warehouse's orders to a Telegram chat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := parseAccessArgs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *sheets.Store) error {
				if err := store.GrantAccess(cmd.Context(), entry); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Chat %d receives orders of %s\n", entry.RecipientID, entry.WarehouseName)
				return nil
			})
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke <warehouse> <chat-id>",
		Short: "Stop sending a warehouse's orders to a Telegram chat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := parseAccessArgs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *sheets.Store) error {
				removed, err := store.RevokeAccess(cmd.Context(), entry)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Chat %d had no access to %s\n", entry.RecipientID, entry.WarehouseName)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Chat %d no longer receives orders of %s\n", entry.RecipientID, entry.WarehouseName)
				return nil
			})
		},
	}

	accessCmd.AddCommand(grantCmd, revokeCmd)
	return accessCmd
}

func parseAccessArgs(args []string) (orders.AccessEntry, error) {
	warehouse := strings.TrimSpace(args[0])
	id, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
	if err != nil || id == 0 {
		return orders.AccessEntry{}, fmt.Errorf("chat id must be a non-zero integer, got %q", args[1])
	}
	entry := orders.AccessEntry{WarehouseName: warehouse, RecipientID: id, Recipient: args[1]}
	if !entry.Valid() {
		return orders.AccessEntry{}, fmt.Errorf("warehouse name is required")
	}
	return entry, nil
}
