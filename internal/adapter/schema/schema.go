// Package schema implements the T1 tool adapter, which drives a
// schema-validator/exporter CLI in the shape of cue: validate, export,
// eval, format, and definition-print subcommands against one or more
// schema files plus the stage's resolved input.
package schema

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/alexisbeaulieu97/conflow/internal/adapter"
	"github.com/alexisbeaulieu97/conflow/internal/fingerprint"
	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
	conflowerrors "github.com/alexisbeaulieu97/conflow/pkg/errors"
)

// DefaultBinary is the command name looked up on PATH when no explicit
// binary path is configured.
const DefaultBinary = "cue"

// Adapter drives a cue-compatible schema tool binary.
type Adapter struct {
	bin string
}

// New constructs a schema adapter. An empty bin defers to DefaultBinary.
func New(bin string) *Adapter {
	if bin == "" {
		bin = DefaultBinary
	}
	return &Adapter{bin: bin}
}

var _ adapter.Adapter = (*Adapter)(nil)

func (a *Adapter) ProbeAvailability() (bool, error) {
	_, err := exec.LookPath(a.bin)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (a *Adapter) ReportVersion(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, a.bin, "version")
	out, err := cmd.Output()
	if err != nil {
		return "", conflowerrors.NewResourceMissingError("tool", a.bin, "")
	}
	return string(bytes.TrimSpace(out)), nil
}

func (a *Adapter) ValidateShape(stage *pipeline.Stage) error {
	if stage.Tool.Kind != pipeline.ToolSchema || stage.Tool.Schema == nil {
		return conflowerrors.NewValidationError("tool", fmt.Sprintf("stage %q is not bound to a schema tool", stage.Name), nil)
	}
	return nil
}

func (a *Adapter) Execute(ctx context.Context, stage *pipeline.Stage, workingDir string, env map[string]string, resolvedInputs []string) (adapter.Result, error) {
	if err := a.ValidateShape(stage); err != nil {
		return adapter.Result{}, err
	}
	tool := stage.Tool.Schema
	start := time.Now()

	inputs := resolvedInputs
	if inputs == nil {
		var err error
		inputs, err = fingerprint.RequireInputFiles(*stage, workingDir)
		if err != nil {
			return adapter.Result{}, err
		}
	}
	args := BuildArgs(tool, inputs, workingDir)

	cmd := exec.CommandContext(ctx, a.bin, args...)
	cmd.Dir = workingDir
	cmd.Env = mergedEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	duration := time.Since(start)

	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return adapter.Result{
			Success:  false,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: exitCode,
			Duration: duration,
		}, conflowerrors.NewExecutionError(stage.Name, exitCode, stderr.String(), runErr)
	}

	var outputs []string
	if stage.Output != nil {
		outPath := resolvePath(stage.Output.Path, workingDir)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return adapter.Result{}, conflowerrors.NewIOError("mkdir", filepath.Dir(outPath), err)
		}
		if err := os.WriteFile(outPath, stdout.Bytes(), 0o644); err != nil {
			return adapter.Result{}, conflowerrors.NewIOError("write", outPath, err)
		}
		outputs = append(outputs, outPath)
	}

	return adapter.Result{
		Success:  true,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
		Outputs:  outputs,
		Duration: duration,
	}, nil
}

// BuildArgs assembles the cue command-line argument vector for a schema
// tool invocation: subcommand, schema files, resolved input files, the
// export out-format flag, then any custom flags, in that order.
func BuildArgs(tool *pipeline.SchemaTool, inputs []string, workingDir string) []string {
	args := []string{tool.Command}

	for _, s := range tool.Schemas {
		args = append(args, resolvePath(s, workingDir))
	}

	for _, in := range inputs {
		args = append(args, resolvePath(in, workingDir))
	}

	if tool.Command == "export" && tool.OutFormat != "" {
		args = append(args, "--out", tool.OutFormat)
	}
	args = append(args, tool.Flags...)

	return args
}

func resolvePath(p, workingDir string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workingDir, p)
}

func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
