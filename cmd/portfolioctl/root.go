package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "portfolioctl",
		Short: "Maintenance commands for the portfolio backend",
		Long: `portfolioctl syncs GitHub repositories outside the HTTP API and runs the
demo-URL detector and the project classifier on arbitrary input.

Configuration is read the same way as the server: .env, PORTFOLIO_CONFIG,
then environment variables.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	logger := func(cmd *cobra.Command) *slog.Logger {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	}

	root.AddCommand(
		newSyncCmd(logger),
		newDetectCmd(),
		newClassifyCmd(),
	)
	return root
}
