package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/onelink-portfolio/internal/config"
	sqliteRepo "github.com/sakif/onelink-portfolio/internal/repository/sqlite"
	"github.com/sakif/onelink-portfolio/internal/server"
	"github.com/sakif/onelink-portfolio/internal/service"
)

func newSyncCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var (
		userID string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync GitHub repositories for one user or for everyone",
		Long: `Run a synchronization pass with the stored GitHub credential.

--all walks every user with a stored credential, one after another, and keeps
going when one of them fails. The exit status is non-zero if any pass failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (userID != "") == all {
				return errors.New("exactly one of --user or --all is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger(cmd)

			db, err := sqliteRepo.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			svc, err := server.NewSyncService(cfg, db, nil, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if userID != "" {
				res, err := svc.SyncUser(ctx, userID)
				printResult(out, userID, res, err)
				return err
			}

			outcomes, err := svc.SyncAll(ctx)
			if err != nil {
				return err
			}
			failed := 0
			for _, o := range outcomes {
				printResult(out, o.UserID, o.Result, o.Err)
				if o.Err != nil {
					failed++
				}
			}
			fmt.Fprintf(out, "%d users, %d failed\n", len(outcomes), failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d sync passes failed", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Internal user id to sync")
	cmd.Flags().BoolVar(&all, "all", false, "Sync every user with a stored GitHub credential")
	return cmd
}

func printResult(out io.Writer, userID string, res *service.SyncResult, err error) {
	synced, degraded := 0, 0
	if res != nil {
		synced, degraded = res.SyncedCount, len(res.Degraded)
	}
	status := "ok"
	if err != nil {
		status = "error: " + err.Error()
	}
	fmt.Fprintf(out, "%s\tsynced=%d\tdegraded=%d\t%s\n", userID, synced, degraded, status)
	if res != nil {
		for _, d := range res.Degraded {
			fmt.Fprintf(out, "  %s: %s\n", d.Name, d.Reason)
		}
	}
}
