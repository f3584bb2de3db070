package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wbwatch/internal/daemon"
	"wbwatch/internal/daemonrun"
	"wbwatch/internal/logging"
	"wbwatch/internal/notifications"
)

const testMessageText = "wbwatch: тестовое сообщение"

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var recipient int64

	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test operator alert and, optionally, a Telegram message",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewNop()
			rt, err := daemonrun.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			d, err := daemon.New(cfg, rt.Poller, rt.Alerts, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, message, err := d.TestNotification(cmd.Context())
			fmt.Fprintln(out, message)
			if err != nil {
				return err
			}

			if recipient == 0 {
				return nil
			}
			if err := rt.Sender.Send(cmd.Context(), recipient, notifications.Message{Text: testMessageText}); err != nil {
				return err
			}
			if cfg.Telegram.DryRun {
				fmt.Fprintf(out, "Telegram dry run: message to %d logged only\n", recipient)
			} else {
				fmt.Fprintf(out, "Telegram message sent to %d\n", recipient)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&recipient, "recipient", 0, "Telegram chat id to send a test message to")
	return cmd
}
