package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/conflow/internal/graph"
)

func newGraphCmd(root *rootFlags) *cobra.Command {
	var configPath string
	var format string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render a pipeline's stage dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, configPath, format)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pipeline.yaml", "path to the pipeline document")
	cmd.Flags().StringVar(&format, "format", "list", "output format: list, dot, mermaid")
	return cmd
}

func runGraph(cmd *cobra.Command, configPath, format string) error {
	p, err := loadPipeline(configPath)
	if err != nil {
		return err
	}
	g, err := graph.Build(p)
	if err != nil {
		return err
	}

	var out string
	switch format {
	case "list":
		out = g.RenderList()
	case "dot":
		out = g.RenderDOT()
	case "mermaid":
		out = g.RenderMermaid()
	default:
		return fmt.Errorf("unknown graph format %q", format)
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
