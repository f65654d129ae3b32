package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/conflow/internal/cachestore"
	"github.com/alexisbeaulieu97/conflow/internal/executor"
	"github.com/alexisbeaulieu97/conflow/internal/graph"
	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
)

func samplePipeline() *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Name: "demo",
		Stages: []pipeline.Stage{
			{
				Name:  "generate",
				Tool:  pipeline.ToolBinding{Kind: pipeline.ToolGenerator, Generator: &pipeline.GeneratorTool{Command: "export"}},
				Input: pipeline.InputSpec{Kind: pipeline.InputSingle, Patterns: []string{"*.ncl"}},
			},
			{
				Name:      "check",
				DependsOn: []string{"generate"},
				Tool:      pipeline.ToolBinding{Kind: pipeline.ToolSchema, Schema: &pipeline.SchemaTool{Command: "validate"}},
				Input:     pipeline.InputSpec{Kind: pipeline.InputUpstream, FromStage: "generate"},
			},
		},
	}
}

func TestPlanListsStagesInOrderWithDependencies(t *testing.T) {
	pl := samplePipeline()
	g, err := graph.Build(pl)
	require.NoError(t, err)
	order, err := g.TopologicalOrder()
	require.NoError(t, err)

	var buf bytes.Buffer
	New(&buf).Plan(pl, g, order)

	out := buf.String()
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "generate")
	assert.Contains(t, out, "check")
	assert.Contains(t, out, "depends: generate")
}

func TestStageResultRendersEachOutcome(t *testing.T) {
	cases := []struct {
		outcome executor.StageOutcome
		want    string
	}{
		{executor.OutcomeCached, "(cached)"},
		{executor.OutcomeSkipped, "(skipped)"},
		{executor.OutcomeFailed, "failed"},
		{executor.OutcomeRan, "build"},
	}

	for _, c := range cases {
		var buf bytes.Buffer
		New(&buf).StageResult(executor.StageResult{Stage: "build", Outcome: c.outcome})
		assert.Contains(t, buf.String(), c.want)
	}
}

func TestSummaryReportsSuccessAndFailure(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Summary(&executor.RunResult{Success: true, Duration: time.Second})
	assert.Contains(t, buf.String(), "completed successfully")

	buf.Reset()
	New(&buf).Summary(&executor.RunResult{Success: false, Duration: time.Second})
	assert.Contains(t, buf.String(), "failed")
}

func TestCacheStatsPrintsEntryCountAndSize(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).CacheStats(cachestore.Stats{Entries: 3, SizeBytes: 2048})
	out := buf.String()
	assert.Contains(t, out, "Entries: 3")
	assert.Contains(t, out, "2.00 KB")
}
