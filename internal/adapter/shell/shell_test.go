package shell

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
)

func TestExecuteRunsCommandSuccessfully(t *testing.T) {
	a := New()
	dir := t.TempDir()
	stage := &pipeline.Stage{
		Name: "echo",
		Tool: pipeline.ToolBinding{Kind: pipeline.ToolShell, Shell: &pipeline.ShellTool{Command: "echo hello"}},
	}

	result, err := a.Execute(context.Background(), stage, dir, nil, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Stdout, "hello")
	assert.Equal(t, 0, result.ExitCode)
}

func TestExecuteReportsNonZeroExitAsFailure(t *testing.T) {
	a := New()
	dir := t.TempDir()
	stage := &pipeline.Stage{
		Name: "fail",
		Tool: pipeline.ToolBinding{Kind: pipeline.ToolShell, Shell: &pipeline.ShellTool{Command: "exit 3"}},
	}

	result, err := a.Execute(context.Background(), stage, dir, nil, nil)
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.ExitCode)
}

func TestExecutePassesEnvironmentToCommand(t *testing.T) {
	a := New()
	dir := t.TempDir()
	stage := &pipeline.Stage{
		Name: "env",
		Tool: pipeline.ToolBinding{Kind: pipeline.ToolShell, Shell: &pipeline.ShellTool{Command: "echo $GREETING"}},
	}

	result, err := a.Execute(context.Background(), stage, dir, map[string]string{"GREETING": "hi-there"}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "hi-there")
}

func TestExecuteRecordsDeclaredOutputPath(t *testing.T) {
	a := New()
	dir := t.TempDir()
	stage := &pipeline.Stage{
		Name:   "write",
		Tool:   pipeline.ToolBinding{Kind: pipeline.ToolShell, Shell: &pipeline.ShellTool{Command: "echo x > out.txt"}},
		Output: &pipeline.OutputSpec{Kind: pipeline.OutputFile, Path: "out.txt"},
	}

	result, err := a.Execute(context.Background(), stage, dir, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Outputs, 1)
	assert.Equal(t, filepath.Join(dir, "out.txt"), result.Outputs[0])
}

func TestValidateShapeRejectsNonShellTool(t *testing.T) {
	a := New()
	stage := &pipeline.Stage{
		Name: "s",
		Tool: pipeline.ToolBinding{Kind: pipeline.ToolSchema, Schema: &pipeline.SchemaTool{Command: "validate"}},
	}
	require.Error(t, a.ValidateShape(stage))
}

func TestProbeAvailabilityFindsAShell(t *testing.T) {
	a := New()
	ok, err := a.ProbeAvailability()
	require.NoError(t, err)
	assert.True(t, ok)
}
