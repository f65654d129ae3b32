// Package adapter defines the uniform interface every tool binding runs
// behind, and the execution result both the executor and the cache store
// agree on.
package adapter

import (
	"context"
	"time"

	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
)

// Result is what an Adapter returns for one stage invocation.
type Result struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
	Outputs  []string
	Duration time.Duration
}

// Adapter is the uniform surface every tool binding (schema, generator,
// shell) runs behind. Implementations are stateless and safe for
// concurrent use across stages, though the sequential executor never
// exercises that concurrency itself.
type Adapter interface {
	// Execute runs the stage's tool invocation. workingDir is the
	// workspace root input patterns resolve against; env is the stage's
	// fully merged environment; resolvedInputs, when non-nil, overrides
	// the adapter's own glob resolution (used when the input is an
	// upstream reference whose files were already located by the
	// executor).
	Execute(ctx context.Context, stage *pipeline.Stage, workingDir string, env map[string]string, resolvedInputs []string) (Result, error)

	// ProbeAvailability reports whether the underlying tool binary can be
	// located, without running it.
	ProbeAvailability() (bool, error)

	// ReportVersion returns the tool's self-reported version string.
	ReportVersion(ctx context.Context) (string, error)

	// ValidateShape performs adapter-specific structural checks beyond
	// what the pipeline package's Validate already covers (e.g. command
	// compatibility with the declared input/output shape).
	ValidateShape(stage *pipeline.Stage) error
}
