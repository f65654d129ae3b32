// Package report renders the execution plan and per-stage progress lines
// printed by the run and watch commands: the plan header, one line per
// stage as it starts/finishes/hits cache, and the final summary.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/conflow/internal/cachestore"
	"github.com/alexisbeaulieu97/conflow/internal/executor"
	"github.com/alexisbeaulieu97/conflow/internal/graph"
	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
)

var (
	styleBold   = lipgloss.NewStyle().Bold(true)
	styleDim    = lipgloss.NewStyle().Faint(true)
	styleGreen  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleRed    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleBlue   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleYellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Printer writes plan and progress output to w.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Plan prints the pipeline name and the ordered, numbered list of stages
// that will run, each annotated with its tool kind and dependencies.
func (p *Printer) Plan(pl *pipeline.Pipeline, g *graph.Graph, order []string) {
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "%s: %s\n", styleBold.Render("Pipeline"), pl.Name)
	fmt.Fprintln(p.w, strings.Repeat("=", 50))
	plural := "s"
	if len(order) == 1 {
		plural = ""
	}
	fmt.Fprintf(p.w, "Execution plan (%d stage%s):\n\n", len(order), plural)

	for i, name := range order {
		stage, ok := pl.StageByName(name)
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %d. %s (%s)", i+1, styleBold.Render(name), stage.ToolName())
		if deps := g.DependenciesOf(name); len(deps) > 0 {
			line += " " + styleDim.Render(fmt.Sprintf("[depends: %s]", strings.Join(deps, ", ")))
		}
		fmt.Fprintln(p.w, line)
	}
	fmt.Fprintln(p.w)
}

// StageStarted prints the in-progress marker for a stage about to run.
func (p *Printer) StageStarted(name string) {
	fmt.Fprintf(p.w, "  %s %s...\n", styleBlue.Render("->"), name)
}

// StageResult prints the terminal status line for one stage's outcome.
func (p *Printer) StageResult(res executor.StageResult) {
	switch res.Outcome {
	case executor.OutcomeCached:
		fmt.Fprintf(p.w, "  %s %s %s\n", styleGreen.Render("v"), styleBold.Render(res.Stage), styleDim.Render("(cached)"))
	case executor.OutcomeSkipped:
		fmt.Fprintf(p.w, "  %s %s %s\n", styleYellow.Render("o"), styleBold.Render(res.Stage), styleDim.Render("(skipped)"))
	case executor.OutcomeFailed:
		fmt.Fprintf(p.w, "  %s %s failed\n", styleRed.Render("x"), styleBold.Render(res.Stage))
		if res.Result.Stderr != "" {
			fmt.Fprintln(p.w, styleDim.Render(res.Result.Stderr))
		}
	case executor.OutcomeRan:
		fmt.Fprintf(p.w, "  %s %s (%.2fs)\n", styleGreen.Render("v"), styleBold.Render(res.Stage), res.Duration.Seconds())
	}
}

// Summary prints the final success/failure line for a completed run.
func (p *Printer) Summary(result *executor.RunResult) {
	fmt.Fprintln(p.w)
	if result.Success {
		fmt.Fprintln(p.w, styleGreen.Render(fmt.Sprintf("Pipeline completed successfully in %.2fs", result.Duration.Seconds())))
	} else {
		fmt.Fprintln(p.w, styleRed.Render(fmt.Sprintf("Pipeline failed after %.2fs", result.Duration.Seconds())))
	}
}

// Run prints the plan followed by every recorded stage result and the
// final summary, in a single pass over a completed RunResult.
func (p *Printer) Run(pl *pipeline.Pipeline, g *graph.Graph, result *executor.RunResult) {
	p.Plan(pl, g, result.Order)
	for _, name := range result.Order {
		res, ok := result.Results[name]
		if !ok {
			continue
		}
		p.StageResult(res)
	}
	p.Summary(result)
}

// CacheStats prints the aggregate cache-directory statistics produced by
// "cache stats".
func (p *Printer) CacheStats(stats cachestore.Stats) {
	fmt.Fprintf(p.w, "%s: %d\n", styleBold.Render("Entries"), stats.Entries)
	fmt.Fprintf(p.w, "%s: %s\n", styleBold.Render("Size"), stats.FormattedSize())
	if stats.OldestEntry != nil {
		fmt.Fprintf(p.w, "%s: %s\n", styleBold.Render("Oldest"), stats.OldestEntry.Format("2006-01-02 15:04:05"))
	}
	if stats.NewestEntry != nil {
		fmt.Fprintf(p.w, "%s: %s\n", styleBold.Render("Newest"), stats.NewestEntry.Format("2006-01-02 15:04:05"))
	}
}
