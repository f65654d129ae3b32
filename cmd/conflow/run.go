package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/conflow/internal/executor"
	"github.com/alexisbeaulieu97/conflow/internal/graph"
	"github.com/alexisbeaulieu97/conflow/internal/report"
)

type runOptions struct {
	configPath    string
	dryRun        bool
	onlyStages    []string
	skipToolCheck bool
	workspace     string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a pipeline's stages in topological order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "pipeline.yaml", "path to the pipeline document")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the execution plan without running any stage")
	cmd.Flags().StringSliceVar(&opts.onlyStages, "only", nil, "restrict execution to these stages")
	cmd.Flags().BoolVar(&opts.skipToolCheck, "skip-tool-check", false, "skip the preflight check for required tool binaries")
	cmd.Flags().StringVar(&opts.workspace, "workspace", "", "workspace root input/output paths resolve against (default: pipeline file's directory)")

	return cmd
}

func runRun(cmd *cobra.Command, root *rootFlags, opts *runOptions) error {
	p, err := loadPipeline(opts.configPath)
	if err != nil {
		return err
	}

	workspace := opts.workspace
	if workspace == "" {
		abs, err := filepath.Abs(opts.configPath)
		if err != nil {
			return err
		}
		workspace = filepath.Dir(abs)
	}

	if !opts.skipToolCheck {
		if missing := checkTools(p); len(missing) > 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "Missing required tools:")
			for _, kind := range missing {
				fmt.Fprintf(cmd.ErrOrStderr(), "  x %s\n", kind)
				if hint, ok := installHints[kind]; ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "    install: %s\n", hint)
				}
			}
			return errUnavailableTools
		}
	}

	log := newLogger(root)
	printer := report.New(cmd.OutOrStdout())

	g, err := graph.Build(p)
	if err != nil {
		return err
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return err
	}
	if len(opts.onlyStages) > 0 {
		order = filterOrder(order, opts.onlyStages)
	}
	printer.Plan(p, g, order)

	result, err := executor.Run(context.Background(), p, workspace, executor.Options{
		NoCache:    root.noCache,
		DryRun:     opts.dryRun,
		OnlyStages: opts.onlyStages,
		Logger:     log,
	})
	if result != nil {
		for _, name := range result.Order {
			if res, ok := result.Results[name]; ok {
				printer.StageResult(res)
			}
		}
		printer.Summary(result)
	}
	return err
}

func filterOrder(order, only []string) []string {
	allowed := make(map[string]bool, len(only))
	for _, name := range only {
		allowed[name] = true
	}
	var filtered []string
	for _, name := range order {
		if allowed[name] {
			filtered = append(filtered, name)
		}
	}
	return filtered
}
