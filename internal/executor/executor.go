// Package executor runs a pipeline's stages in sequential topological
// order, consulting the cache before invoking a stage's adapter and
// recording its result afterward. Unlike the teacher's level-parallel
// engine, stages never run concurrently with one another here: each
// stage's fingerprint and cache lookup must see the previous stage's
// completed, possibly-failed state.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/conflow/internal/adapter"
	"github.com/alexisbeaulieu97/conflow/internal/adapter/generator"
	"github.com/alexisbeaulieu97/conflow/internal/adapter/schema"
	"github.com/alexisbeaulieu97/conflow/internal/adapter/shell"
	"github.com/alexisbeaulieu97/conflow/internal/cachestore"
	"github.com/alexisbeaulieu97/conflow/internal/fingerprint"
	"github.com/alexisbeaulieu97/conflow/internal/graph"
	"github.com/alexisbeaulieu97/conflow/internal/logx"
	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
	conflowerrors "github.com/alexisbeaulieu97/conflow/pkg/errors"
)

// StageOutcome is how one stage's run is reported, independent of
// whether it ran, was skipped by its condition, or was served from cache.
type StageOutcome int

const (
	OutcomeRan StageOutcome = iota
	OutcomeCached
	OutcomeSkipped
	OutcomeFailed
)

// StageResult is the recorded per-stage outcome of a run.
type StageResult struct {
	Stage    string
	Outcome  StageOutcome
	Result   adapter.Result
	Err      error
	Duration time.Duration
}

// RunResult is the outcome of executing a whole pipeline (or a named
// subset of it).
type RunResult struct {
	Order    []string
	Results  map[string]StageResult
	Success  bool
	Duration time.Duration
}

// Options controls one invocation of Run.
type Options struct {
	NoCache    bool
	DryRun     bool
	OnlyStages []string // empty means run every stage in topological order
	Logger     *logx.Logger
	// Now supplies the clock used for cache timestamps; defaults to
	// time.Now when nil. Exposed so callers (and tests) can make runs
	// reproducible.
	Now func() time.Time
}

// Run builds and validates the pipeline's dependency graph, then
// executes stages one at a time in topological order.
func Run(ctx context.Context, p *pipeline.Pipeline, workspaceRoot string, opts Options) (*RunResult, error) {
	log := opts.Logger
	if log == nil {
		log = logx.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	start := now()

	report := pipeline.Validate(p)
	if !report.Valid() {
		return nil, conflowerrors.NewValidationError("", fmt.Sprintf("pipeline failed validation: %v", report.Errors), nil)
	}

	g, err := graph.Build(p)
	if err != nil {
		return nil, err
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	if len(opts.OnlyStages) > 0 {
		allowed := make(map[string]bool, len(opts.OnlyStages))
		for _, name := range opts.OnlyStages {
			allowed[name] = true
		}
		var filtered []string
		for _, name := range order {
			if allowed[name] {
				filtered = append(filtered, name)
			}
		}
		order = filtered
	}

	result := &RunResult{
		Order:   order,
		Results: make(map[string]StageResult, len(order)),
		Success: true,
	}

	if opts.DryRun {
		result.Duration = now().Sub(start)
		return result, nil
	}

	var store *cachestore.Store
	if !opts.NoCache && p.Cache.Enabled {
		store, err = cachestore.New(joinRoot(workspaceRoot, p.EffectiveCacheDirectory()))
		if err != nil {
			return nil, conflowerrors.NewIOError("mkdir", p.EffectiveCacheDirectory(), err)
		}
	}

	for _, name := range order {
		stage, _ := p.StageByName(name)
		stageLog := log.WithFields(map[string]interface{}{"stage": name})

		if stage.Condition != nil && !evaluateCondition(stage.Condition, p.EffectiveEnv(stage), workspaceRoot) {
			stageLog.Info("condition not satisfied, skipping stage")
			result.Results[name] = StageResult{Stage: name, Outcome: OutcomeSkipped}
			continue
		}

		env := p.EffectiveEnv(stage)

		resolvedInputs, err := resolveUpstreamInputs(stage, result.Results)
		if err != nil {
			return nil, err
		}

		var cacheKey string
		if store != nil {
			cacheKey, err = fingerprint.Stage(*stage, env, workspaceRoot)
			if err != nil {
				return nil, err
			}
			if cached, hit := store.Lookup(cacheKey); hit {
				stageLog.Info("cache hit")
				result.Results[name] = StageResult{
					Stage:   name,
					Outcome: OutcomeCached,
					Result: adapter.Result{
						Success:  cached.Success,
						Stdout:   cached.Stdout,
						Stderr:   cached.Stderr,
						ExitCode: cached.ExitCode,
						Outputs:  cached.Outputs,
					},
				}
				continue
			}
		}

		tool, ok := adapterFor(stage.Tool.Kind)
		if !ok {
			return nil, conflowerrors.NewValidationError("tool", fmt.Sprintf("stage %q: no adapter for tool kind %q", name, stage.Tool.Kind), nil)
		}

		stageStart := now()
		execResult, execErr := tool.Execute(ctx, stage, workspaceRoot, env, resolvedInputs)
		duration := now().Sub(stageStart)

		if execErr != nil {
			stageLog.Error("stage failed", execErr)
			result.Results[name] = StageResult{Stage: name, Outcome: OutcomeFailed, Result: execResult, Err: execErr, Duration: duration}
			if !stage.AllowFailure {
				result.Success = false
				result.Duration = now().Sub(start)
				return result, execErr
			}
			continue
		}

		stageLog.Info("stage completed")
		result.Results[name] = StageResult{Stage: name, Outcome: OutcomeRan, Result: execResult, Duration: duration}

		if store != nil {
			_ = store.Put(cacheKey, name, cachestore.Result{
				Success:    execResult.Success,
				Stdout:     execResult.Stdout,
				Stderr:     execResult.Stderr,
				ExitCode:   execResult.ExitCode,
				Outputs:    execResult.Outputs,
				DurationMS: duration.Milliseconds(),
			}, now())
		}
	}

	result.Duration = now().Sub(start)
	return result, nil
}

func adapterFor(kind pipeline.ToolKind) (adapter.Adapter, bool) {
	switch kind {
	case pipeline.ToolSchema:
		return schema.New(""), true
	case pipeline.ToolGenerator:
		return generator.New(""), true
	case pipeline.ToolShell:
		return shell.New(), true
	default:
		return nil, false
	}
}

// resolveUpstreamInputs looks up the declared outputs of a stage's
// upstream reference, if any, in the results accumulated so far. It
// returns OrderingError when the reference has no recorded result,
// which can only happen for a stage outside the current OnlyStages
// subset or one whose upstream was skipped by its own condition.
func resolveUpstreamInputs(stage *pipeline.Stage, results map[string]StageResult) ([]string, error) {
	ref, ok := stage.ReferencesStage()
	if !ok {
		return nil, nil
	}
	prev, ok := results[ref]
	if !ok || prev.Outcome == OutcomeSkipped {
		return nil, conflowerrors.NewOrderingError(stage.Name, ref)
	}
	return prev.Result.Outputs, nil
}

func evaluateCondition(c *pipeline.Condition, env map[string]string, workspaceRoot string) bool {
	if c.FileExists != "" {
		if !fileExists(joinRoot(workspaceRoot, c.FileExists)) {
			return false
		}
	}
	if c.EnvSet != "" {
		if _, ok := env[c.EnvSet]; !ok {
			return false
		}
	}
	for k, want := range c.EnvEquals {
		if env[k] != want {
			return false
		}
	}
	return true
}
