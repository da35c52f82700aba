package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sunbalance",
		Short:         "SunBalance client: session, profiles and today's sun recommendation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newLoginCommand(),
		newLogoutCommand(),
		newRefreshCommand(),
		newStatusCommand(),
		newRegisterCommand(),
		newProfilesCommand(),
		newSettingsCommand(),
		newTodayCommand(),
		newServeCommand(),
	)
	return cmd
}
