package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/app"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/ingest"
)

const defaultSpec = "@every 24h"

type deps struct {
	runner *ingest.Runner
	logger *zap.SugaredLogger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ingest",
		Short:        "Load scraped job listings into the job board",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd(), scheduleCmd())
	return root
}

func runCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest a records file once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d deps) error {
				stats, err := d.runner.RunFile(cmd.Context(), file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "inserted=%d duplicate=%d failed=%d\n",
					stats.Inserted, stats.Duplicate, stats.Failed)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with scraped records")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func scheduleCmd() *cobra.Command {
	var (
		file string
		spec string
		now  bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Ingest a records file on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d deps) error {
				s := ingest.NewScheduler(d.runner, file, spec, d.logger)
				if err := s.Start(ctx); err != nil {
					return err
				}
				defer s.Stop()

				if now {
					if err := s.RunNow(); err != nil {
						return err
					}
				}
				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with scraped records")
	cmd.Flags().StringVar(&spec, "spec", defaultSpec, "cron spec")
	cmd.Flags().BoolVar(&now, "now", false, "also ingest once at startup")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func withDeps(ctx context.Context, fn func(d deps) error) error {
	d := deps{}
	a := fx.New(
		app.Core,
		ingest.Module,
		fx.Populate(&d.runner, &d.logger),
	)
	if err := a.Start(ctx); err != nil {
		return errors.Wrap(err, "start")
	}
	defer func() {
		if err := a.Stop(context.Background()); err != nil {
			d.logger.Warnw("stop", "err", err)
		}
	}()

	return fn(d)
}
