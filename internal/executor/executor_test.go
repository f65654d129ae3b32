package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
)

func shellStage(name, command string, dependsOn ...string) pipeline.Stage {
	return pipeline.Stage{
		Name:      name,
		DependsOn: dependsOn,
		Tool:      pipeline.ToolBinding{Kind: pipeline.ToolShell, Shell: &pipeline.ShellTool{Command: command}},
		Input:     pipeline.InputSpec{Kind: pipeline.InputSingle, Patterns: []string{"*.txt"}},
	}
}

func TestRunExecutesStagesInTopologicalOrder(t *testing.T) {
	dir := t.TempDir()
	p := &pipeline.Pipeline{
		Name: "seq",
		Stages: []pipeline.Stage{
			shellStage("first", "echo first >> order.log"),
			shellStage("second", "echo second >> order.log", "first"),
		},
	}

	result, err := Run(context.Background(), p, dir, Options{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"first", "second"}, result.Order)

	data, err := os.ReadFile(filepath.Join(dir, "order.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestRunSkipsStageWhenConditionFails(t *testing.T) {
	dir := t.TempDir()
	p := &pipeline.Pipeline{
		Name: "cond",
		Stages: []pipeline.Stage{
			{
				Name:      "maybe",
				Tool:      pipeline.ToolBinding{Kind: pipeline.ToolShell, Shell: &pipeline.ShellTool{Command: "echo ran"}},
				Input:     pipeline.InputSpec{Kind: pipeline.InputSingle, Patterns: []string{"*.txt"}},
				Condition: &pipeline.Condition{FileExists: "trigger.flag"},
			},
		},
	}

	result, err := Run(context.Background(), p, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, result.Results["maybe"].Outcome)
}

func TestRunStopsOnFailureWithoutAllowFailure(t *testing.T) {
	dir := t.TempDir()
	p := &pipeline.Pipeline{
		Name: "fails",
		Stages: []pipeline.Stage{
			shellStage("broken", "exit 1"),
			shellStage("never", "echo nope", "broken"),
		},
	}

	result, err := Run(context.Background(), p, dir, Options{})
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, OutcomeFailed, result.Results["broken"].Outcome)
	_, ran := result.Results["never"]
	assert.False(t, ran)
}

func TestRunContinuesPastAllowedFailure(t *testing.T) {
	dir := t.TempDir()
	p := &pipeline.Pipeline{
		Name: "tolerant",
		Stages: []pipeline.Stage{
			{
				Name:         "broken",
				AllowFailure: true,
				Tool:         pipeline.ToolBinding{Kind: pipeline.ToolShell, Shell: &pipeline.ShellTool{Command: "exit 1"}},
				Input:        pipeline.InputSpec{Kind: pipeline.InputSingle, Patterns: []string{"*.txt"}},
			},
			shellStage("after", "echo survived"),
		},
	}

	result, err := Run(context.Background(), p, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Results["broken"].Outcome)
	assert.Equal(t, OutcomeRan, result.Results["after"].Outcome)
}

func TestRunDryRunExecutesNothing(t *testing.T) {
	dir := t.TempDir()
	p := &pipeline.Pipeline{
		Name: "dry",
		Stages: []pipeline.Stage{
			shellStage("touch", "touch should-not-exist.txt"),
		},
	}

	result, err := Run(context.Background(), p, dir, Options{DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	_, statErr := os.Stat(filepath.Join(dir, "should-not-exist.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunOnlyStagesFiltersExecutionSet(t *testing.T) {
	dir := t.TempDir()
	p := &pipeline.Pipeline{
		Name: "subset",
		Stages: []pipeline.Stage{
			shellStage("a", "echo a"),
			shellStage("b", "echo b"),
		},
	}

	result, err := Run(context.Background(), p, dir, Options{OnlyStages: []string{"b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, result.Order)
}

func TestRunServesSecondInvocationFromCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out.txt"), []byte("x"), 0o644))

	p := &pipeline.Pipeline{
		Name:  "cached",
		Cache: pipeline.CachePolicy{Enabled: true, Directory: ".cache"},
		Stages: []pipeline.Stage{
			{
				Name:   "build",
				Tool:   pipeline.ToolBinding{Kind: pipeline.ToolShell, Shell: &pipeline.ShellTool{Command: "echo built"}},
				Input:  pipeline.InputSpec{Kind: pipeline.InputSingle, Patterns: []string{"*.txt"}},
				Output: &pipeline.OutputSpec{Kind: pipeline.OutputFile, Path: "out.txt"},
			},
		},
	}

	clock := time.Unix(1000, 0)
	opts := Options{Now: func() time.Time { return clock }}

	first, err := Run(context.Background(), p, dir, opts)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRan, first.Results["build"].Outcome)

	second, err := Run(context.Background(), p, dir, opts)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCached, second.Results["build"].Outcome)
}

func TestRunReturnsOrderingErrorWhenUpstreamMissingFromSubset(t *testing.T) {
	dir := t.TempDir()
	p := &pipeline.Pipeline{
		Name: "chain",
		Stages: []pipeline.Stage{
			shellStage("generate", "echo x > mid.json"),
			{
				Name:  "check",
				Tool:  pipeline.ToolBinding{Kind: pipeline.ToolShell, Shell: &pipeline.ShellTool{Command: "cat mid.json"}},
				Input: pipeline.InputSpec{Kind: pipeline.InputUpstream, FromStage: "generate"},
			},
		},
	}

	_, err := Run(context.Background(), p, dir, Options{OnlyStages: []string{"check"}})
	require.Error(t, err)
}
