package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const cacheDoc = `
name: demo
cache:
  enabled: true
stages:
  - name: build
    tool:
      type: shell
      command: "echo built > out.txt"
    input: "*.txt"
    output: out.txt
`

func TestCacheStatsReportsZeroEntriesBeforeAnyRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cacheDoc), 0o644))

	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"cache", "stats", "--config", path})

	require.NoError(t, root.Execute())
	require.Contains(t, buf.String(), "Entries: 0")
}

func TestCacheClearSucceedsOnEmptyCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cacheDoc), 0o644))

	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"cache", "clear", "--config", path})

	require.NoError(t, root.Execute())
	require.Contains(t, buf.String(), "cache cleared")
}
