package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/multision/SupaConsole/internal/app/migrate"
	"github.com/multision/SupaConsole/pkg/config"
	"github.com/multision/SupaConsole/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or inspect SupaConsole database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Duration("timeout", time.Minute, "command timeout")
	root.AddCommand(
		runnerCmd("up", "Apply all pending migrations", func(ctx context.Context, r *migrate.Runner, _ *cobra.Command) error {
			return r.Ensure(ctx)
		}),
		runnerCmd("status", "Print applied and pending migrations", func(ctx context.Context, r *migrate.Runner, _ *cobra.Command) error {
			return r.Status(ctx)
		}),
		downCmd(),
	)
	return root
}

func downCmd() *cobra.Command {
	cmd := runnerCmd("down", "Roll back migrations", func(ctx context.Context, r *migrate.Runner, cmd *cobra.Command) error {
		target, err := cmd.Flags().GetInt64("to")
		if err != nil {
			return err
		}
		return r.Down(ctx, target)
	})
	cmd.Flags().Int64("to", 0, "roll back to this version (default: one step)")
	return cmd
}

type runnerFunc func(ctx context.Context, r *migrate.Runner, cmd *cobra.Command) error

func runnerCmd(use, short string, fn runnerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return err
			}
			cfg := config.LoadAPIConfig()
			log := logger.New("migrate", logger.ParseLevel(cfg.LogLevel))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			runner, err := migrate.New(pool, cfg.MigrationsDir, log)
			if err != nil {
				return fmt.Errorf("configure migrations: %w", err)
			}
			defer runner.Close()

			if err := fn(ctx, runner, cmd); err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			log.Info("migration command completed", slog.String("command", use))
			return nil
		},
	}
}
