package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/conflow/internal/executor"
	"github.com/alexisbeaulieu97/conflow/internal/graph"
	"github.com/alexisbeaulieu97/conflow/internal/report"
	"github.com/alexisbeaulieu97/conflow/internal/watch"
)

func newWatchCmd(root *rootFlags) *cobra.Command {
	var configPath string
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run a pipeline whenever its workspace changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, root, configPath, debounce)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pipeline.yaml", "path to the pipeline document")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "settle window before re-running after a filesystem change")
	return cmd
}

func runWatch(cmd *cobra.Command, root *rootFlags, configPath string, debounce time.Duration) error {
	p, err := loadPipeline(configPath)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}
	workspace := filepath.Dir(abs)
	log := newLogger(root)

	w, err := watch.New(watch.Options{
		Root:      workspace,
		CacheDir:  p.EffectiveCacheDirectory(),
		Debounce:  debounce,
		Logger:    log,
		RunOnOpen: true,
	})
	if err != nil {
		return err
	}

	printer := report.New(cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return w.Run(ctx, func(ctx context.Context) error {
		reloaded, err := loadPipeline(configPath)
		if err != nil {
			return err
		}
		g, err := graph.Build(reloaded)
		if err != nil {
			return err
		}
		order, err := g.TopologicalOrder()
		if err != nil {
			return err
		}
		printer.Plan(reloaded, g, order)

		result, err := executor.Run(ctx, reloaded, workspace, executor.Options{NoCache: root.noCache, Logger: log})
		if result != nil {
			for _, name := range result.Order {
				if res, ok := result.Results[name]; ok {
					printer.StageResult(res)
				}
			}
			printer.Summary(result)
		}
		return err
	})
}
