// Package shell implements the T3 tool adapter: an arbitrary shell
// command, run the way the teacher's command plugin runs checks and
// applies — through a resolved shell binary with "-c", inheriting the
// process environment plus the stage's overrides.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/alexisbeaulieu97/conflow/internal/adapter"
	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
	conflowerrors "github.com/alexisbeaulieu97/conflow/pkg/errors"
)

// Adapter runs a stage's shell command.
type Adapter struct{}

// New constructs a shell adapter.
func New() *Adapter {
	return &Adapter{}
}

var _ adapter.Adapter = (*Adapter)(nil)

func (a *Adapter) ProbeAvailability() (bool, error) {
	_, _, err := resolveShell("")
	return err == nil, nil
}

func (a *Adapter) ReportVersion(ctx context.Context) (string, error) {
	shellBin, _, err := resolveShell("")
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, shellBin, "--version")
	out, runErr := cmd.Output()
	if runErr != nil {
		return shellBin, nil
	}
	return string(bytes.TrimSpace(out)), nil
}

func (a *Adapter) ValidateShape(stage *pipeline.Stage) error {
	if stage.Tool.Kind != pipeline.ToolShell || stage.Tool.Shell == nil {
		return conflowerrors.NewValidationError("tool", fmt.Sprintf("stage %q is not bound to a shell tool", stage.Name), nil)
	}
	return nil
}

func (a *Adapter) Execute(ctx context.Context, stage *pipeline.Stage, workingDir string, env map[string]string, resolvedInputs []string) (adapter.Result, error) {
	if err := a.ValidateShape(stage); err != nil {
		return adapter.Result{}, err
	}
	tool := stage.Tool.Shell

	shellBin, shellArgs, err := resolveShell(tool.Interpreter)
	if err != nil {
		return adapter.Result{}, conflowerrors.NewResourceMissingError("tool", tool.Interpreter, stage.Name)
	}

	start := time.Now()
	args := append(append([]string(nil), shellArgs...), tool.Command)
	cmd := exec.CommandContext(ctx, shellBin, args...)
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

func resolveShell(explicit string) (string, []string, error) {
	if explicit != "" {
		return explicit, []string{"-c"}, nil
	}

	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}, nil
	}

	if path, err := exec.LookPath("bash"); err == nil {
		return path, []string{"-c"}, nil
	}
	if path, err := exec.LookPath("sh"); err == nil {
		return path, []string{"-c"}, nil
	}

	return "", nil, fmt.Errorf("no suitable shell found")
}

func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
