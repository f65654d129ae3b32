package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/conflow/internal/cachestore"
	"github.com/alexisbeaulieu97/conflow/internal/report"
)

func newCacheCmd(root *rootFlags) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the pipeline's stage result cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry count, size, and age",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheStats(cmd, configPath)
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached stage result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClear(cmd, configPath)
		},
	}

	for _, sub := range []*cobra.Command{statsCmd, clearCmd} {
		sub.Flags().StringVarP(&configPath, "config", "c", "pipeline.yaml", "path to the pipeline document")
	}

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func openCacheStore(configPath string) (*cachestore.Store, error) {
	p, err := loadPipeline(configPath)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(filepath.Dir(abs), p.EffectiveCacheDirectory())
	return cachestore.New(dir)
}

func runCacheStats(cmd *cobra.Command, configPath string) error {
	store, err := openCacheStore(configPath)
	if err != nil {
		return err
	}
	stats, err := store.Stats()
	if err != nil {
		return err
	}
	report.New(cmd.OutOrStdout()).CacheStats(stats)
	return nil
}

func runCacheClear(cmd *cobra.Command, configPath string) error {
	store, err := openCacheStore(configPath)
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
	return nil
}
