// Package generator implements the T2 tool adapter, which drives a
// programmatic-configuration-generator CLI in the shape of nickel:
// export, typecheck, query, and format subcommands against a single
// entry point.
package generator

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
const DefaultBinary = "nickel"

// Adapter drives a nickel-compatible generator tool binary.
type Adapter struct {
	bin string
}

// New constructs a generator adapter. An empty bin defers to DefaultBinary.
func New(bin string) *Adapter {
	if bin == "" {
		bin = DefaultBinary
	}
	return &Adapter{bin: bin}
}

var _ adapter.Adapter = (*Adapter)(nil)

func (a *Adapter) ProbeAvailability() (bool, error) {
	_, err := exec.LookPath(a.bin)
	return err == nil, nil
}

func (a *Adapter) ReportVersion(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, a.bin, "--version")
	out, err := cmd.Output()
	if err != nil {
		return "", conflowerrors.NewResourceMissingError("tool", a.bin, "")
	}
	return string(bytes.TrimSpace(out)), nil
}

func (a *Adapter) ValidateShape(stage *pipeline.Stage) error {
	if stage.Tool.Kind != pipeline.ToolGenerator || stage.Tool.Generator == nil {
		return conflowerrors.NewValidationError("tool", fmt.Sprintf("stage %q is not bound to a generator tool", stage.Name), nil)
	}
	if stage.Tool.Generator.Command == "export" && stage.Tool.Generator.EntryPoint == "" && len(stage.Input.Patterns) == 0 && stage.Input.Kind != pipeline.InputUpstream {
		return conflowerrors.NewValidationError("tool", fmt.Sprintf("stage %q: generator export needs an entry point, input pattern, or upstream reference", stage.Name), nil)
	}
	return nil
}

func (a *Adapter) Execute(ctx context.Context, stage *pipeline.Stage, workingDir string, env map[string]string, resolvedInputs []string) (adapter.Result, error) {
	if err := a.ValidateShape(stage); err != nil {
		return adapter.Result{}, err
	}
	tool := stage.Tool.Generator
	start := time.Now()

	inputs := resolvedInputs
	if len(inputs) == 0 && tool.EntryPoint == "" {
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
		outPath := stage.Output.Path
		if !filepath.IsAbs(outPath) {
			outPath = filepath.Join(workingDir, outPath)
		}
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

// BuildArgs assembles the nickel command-line argument vector: subcommand,
// entry point, the export format flag, then any custom flags. The entry
// point is the first of: a resolved input (an upstream reference, or a
// glob-resolved pattern when the tool declares no explicit entry point),
// then the tool's own declared entry point.
func BuildArgs(tool *pipeline.GeneratorTool, resolvedInputs []string, workingDir string) []string {
	var entry string
	switch {
	case len(resolvedInputs) > 0:
		entry = resolvedInputs[0]
	case tool.EntryPoint != "":
		entry = tool.EntryPoint
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(workingDir, entry)
		}
	}

	args := []string{tool.Command}
	if entry != "" {
		args = append(args, entry)
	}
	if tool.Command == "export" && tool.OutFormat != "" {
		args = append(args, "--format", tool.OutFormat)
	}
	args = append(args, tool.Flags...)
	return args
}

func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
