package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
	conflowerrors "github.com/alexisbeaulieu97/conflow/pkg/errors"
)

func shellStage(name string, dependsOn ...string) pipeline.Stage {
	return pipeline.Stage{
		Name:      name,
		DependsOn: dependsOn,
		Tool:      pipeline.ToolBinding{Kind: pipeline.ToolShell, Shell: &pipeline.ShellTool{Command: "true"}},
		Input:     pipeline.InputSpec{Kind: pipeline.InputSingle, Patterns: []string{"x"}},
	}
}

// Diamond dependency shape: d depends on b and c, both of which depend on a.
// Document order is a, c, b, d so the tie-break should surface c before b
// when both become ready at the same time.
func diamondPipeline() *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Name: "diamond",
		Stages: []pipeline.Stage{
			shellStage("a"),
			shellStage("c", "a"),
			shellStage("b", "a"),
			shellStage("d", "b", "c"),
		},
	}
}

func TestBuildTopologicalOrderRespectsDocumentOrderTieBreak(t *testing.T) {
	g, err := Build(diamondPipeline())
	require.NoError(t, err)

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c", "b", "d"}, order)
}

func TestBuildDetectsCycle(t *testing.T) {
	p := &pipeline.Pipeline{
		Name: "cyclic",
		Stages: []pipeline.Stage{
			shellStage("x", "z"),
			shellStage("y", "x"),
			shellStage("z", "y"),
		},
	}

	_, err := Build(p)
	require.Error(t, err)

	var cycleErr *conflowerrors.CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Members, "x")
	assert.Contains(t, cycleErr.Members, "y")
	assert.Contains(t, cycleErr.Members, "z")
}

func TestBuildRejectsUnknownDependency(t *testing.T) {
	p := &pipeline.Pipeline{
		Name:   "broken",
		Stages: []pipeline.Stage{shellStage("a", "ghost")},
	}

	_, err := Build(p)
	require.Error(t, err)
	var validationErr *conflowerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestImplicitUpstreamEdgeAddsDependency(t *testing.T) {
	p := &pipeline.Pipeline{
		Name: "implicit",
		Stages: []pipeline.Stage{
			shellStage("generate"),
			{
				Name:  "check",
				Tool:  pipeline.ToolBinding{Kind: pipeline.ToolShell, Shell: &pipeline.ShellTool{Command: "true"}},
				Input: pipeline.InputSpec{Kind: pipeline.InputUpstream, FromStage: "generate"},
			},
		},
	}

	g, err := Build(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"generate"}, g.DependenciesOf("check"))
	assert.Equal(t, []string{"check"}, g.DependentsOf("generate"))

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"generate", "check"}, order)
}

func TestReachesTransitively(t *testing.T) {
	g, err := Build(diamondPipeline())
	require.NoError(t, err)

	assert.True(t, g.Reaches("d", "a"))
	assert.True(t, g.Reaches("b", "a"))
	assert.False(t, g.Reaches("a", "d"))
	assert.True(t, g.Reaches("a", "a"))
}

func TestRenderListIncludesDependencies(t *testing.T) {
	g, err := Build(diamondPipeline())
	require.NoError(t, err)

	out := g.RenderList()
	assert.Contains(t, out, "d <- b, c")
	assert.Contains(t, out, "a\n")
}

func TestRenderDOTIncludesAllEdges(t *testing.T) {
	g, err := Build(diamondPipeline())
	require.NoError(t, err)

	out := g.RenderDOT()
	assert.Contains(t, out, `"a" -> "b"`)
	assert.Contains(t, out, `"a" -> "c"`)
	assert.Contains(t, out, `"b" -> "d"`)
	assert.Contains(t, out, `"c" -> "d"`)
}

func TestRenderMermaidIncludesAllEdges(t *testing.T) {
	g, err := Build(diamondPipeline())
	require.NoError(t, err)

	out := g.RenderMermaid()
	assert.Contains(t, out, "a[a] --> b[b]")
	assert.Contains(t, out, "a[a] --> c[c]")
}
