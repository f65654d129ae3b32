package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const runDoc = `
name: demo
stages:
  - name: build
    tool:
      type: shell
      command: "echo built > out.txt"
    input: "*.txt"
    output: out.txt
`

func TestRunCommandExecutesPipeline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(runDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.txt"), []byte("x"), 0o644))

	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"run", "--config", path})

	require.NoError(t, root.Execute())
	require.Contains(t, buf.String(), "completed successfully")

	_, err := os.Stat(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
}

const runDocMissingTool = `
name: demo
stages:
  - name: check
    tool:
      type: schema
      command: validate
      schemas: [schema.cue]
    input: "*.cue"
`

func TestRunCommandFailsPreflightWhenToolMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(runDocMissingTool), 0o644))

	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"run", "--config", path})

	require.Error(t, root.Execute())
	require.Contains(t, buf.String(), "Missing required tools")
}

func TestRunCommandSkipToolCheckBypassesPreflight(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(runDocMissingTool), 0o644))

	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"run", "--config", path, "--skip-tool-check"})

	err := root.Execute()
	require.NotErrorIs(t, err, errUnavailableTools)
}

func TestRunCommandDryRunExecutesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(runDoc), 0o644))

	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"run", "--config", path, "--dry-run"})

	require.NoError(t, root.Execute())

	_, err := os.Stat(filepath.Join(dir, "out.txt"))
	require.True(t, os.IsNotExist(err))
}
