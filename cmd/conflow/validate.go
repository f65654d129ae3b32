package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/conflow/internal/graph"
	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a pipeline document for structural and shape errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pipeline.yaml", "path to the pipeline document")
	return cmd
}

func runValidate(cmd *cobra.Command, configPath string) error {
	p, err := loadPipeline(configPath)
	if err != nil {
		return err
	}

	report := pipeline.Validate(p)

	abs, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}
	for _, missing := range pipeline.CheckFilesExist(p, filepath.Dir(abs)) {
		report.Warnings = append(report.Warnings, missing)
	}

	if _, err := graph.Build(p); err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	for _, w := range report.Warnings {
		fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e)
	}

	if !report.Valid() || len(report.Errors) > 0 {
		return errValidationFailed
	}
	fmt.Fprintln(cmd.OutOrStdout(), "pipeline is valid")
	return nil
}
