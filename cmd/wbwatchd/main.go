package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wbwatch/internal/config"
	"wbwatch/internal/daemonrun"
	"wbwatch/internal/services"
)

func main() {
	os.Exit(newCommand().executeCode())
}

type command struct {
	*cobra.Command
	code int
}

func newCommand() *command {
	var configPath string
	var opts daemonrun.Options

	c := &command{}
	c.Command = &cobra.Command{
		Use:           "wbwatchd",
		Short:         "wbwatch poller daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			c.code = run(cmd.Context(), configPath, opts)
		},
	}
	c.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	c.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")
	return c
}

func (c *command) executeCode() int {
	if err := c.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return c.code
}

func run(ctx context.Context, configPath string, opts daemonrun.Options) int {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return exitCode(err)
	}
	if err := daemonrun.Run(ctx, cfg, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps a run error to the process status: 2 for configuration
// problems, 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, services.ErrConfiguration):
		return 2
	default:
		return 1
	}
}
