// Package fingerprint computes the content hash used as a stage's cache
// key: a deterministic digest over everything that can change a stage's
// output — its tool binding, input/output specification, effective
// environment, and the contents of every file its input resolves to.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
	conflowerrors "github.com/alexisbeaulieu97/conflow/pkg/errors"
)

// Stage computes the content-hash fingerprint of a stage as it would run
// against workspaceRoot, given its fully merged environment. Missing input
// files are skipped rather than treated as an error; a stage referencing a
// file that does not yet exist is caught later, at execution time.
func Stage(stage pipeline.Stage, env map[string]string, workspaceRoot string) (string, error) {
	h := sha256.New()

	fmt.Fprintf(h, "name:%s\n", stage.Name)
	fmt.Fprintf(h, "tool:%s\n", canonicalTool(stage.Tool))
	fmt.Fprintf(h, "input:%s\n", canonicalInput(stage.Input))
	fmt.Fprintf(h, "output:%s\n", canonicalOutput(stage.Output))

	for _, k := range sortedKeys(env) {
		fmt.Fprintf(h, "env:%s=%s\n", k, env[k])
	}

	files, err := ResolveInputFiles(stage, workspaceRoot)
	if err != nil {
		return "", err
	}
	sort.Strings(files)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		rel, err := filepath.Rel(workspaceRoot, path)
		if err != nil {
			rel = path
		}
		fmt.Fprintf(h, "file:%s:", rel)
		h.Write(data)
		h.Write([]byte{'\n'})
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ResolveInputFiles expands a stage's input patterns into a list of
// existing file paths under workspaceRoot. Upstream-reference inputs have
// no glob patterns of their own and resolve to nothing here, so the
// fingerprint of such a stage covers the referenced stage's name but not
// the contents of that stage's output files.
func ResolveInputFiles(stage pipeline.Stage, workspaceRoot string) ([]string, error) {
	var files []string
	for _, pattern := range stage.Input.Patterns {
		matches, err := globMatches(stage.Name, pattern, workspaceRoot)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

// RequireInputFiles resolves a stage's own input patterns the same way
// ResolveInputFiles does, but treats a pattern that matches zero files as a
// hard error instead of silently skipping it. Adapters call this, rather
// than ResolveInputFiles, immediately before invoking their tool against
// the resolved files, so a stage whose glob matches nothing fails before
// the tool ever runs instead of succeeding against no inputs.
func RequireInputFiles(stage pipeline.Stage, workspaceRoot string) ([]string, error) {
	var files []string
	for _, pattern := range stage.Input.Patterns {
		matches, err := globMatches(stage.Name, pattern, workspaceRoot)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, conflowerrors.NewResourceMissingError("glob", pattern, stage.Name)
		}
		files = append(files, matches...)
	}
	return files, nil
}

func globMatches(stageName, pattern, workspaceRoot string) ([]string, error) {
	full := pattern
	if !filepath.IsAbs(full) {
		full = filepath.Join(workspaceRoot, pattern)
	}
	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, fmt.Errorf("stage %q: invalid glob pattern %q: %w", stageName, pattern, err)
	}
	return matches, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// canonicalTool renders a ToolBinding with a stable field order so that
// equivalent configurations always hash the same regardless of how they
// were constructed.
func canonicalTool(t pipeline.ToolBinding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "kind=%s", t.Kind)
	switch t.Kind {
	case pipeline.ToolSchema:
		s := t.Schema
		fmt.Fprintf(&b, ";command=%s;schemas=%s;flags=%s;out_format=%s",
			s.Command, strings.Join(s.Schemas, ","), strings.Join(s.Flags, ","), s.OutFormat)
	case pipeline.ToolGenerator:
		g := t.Generator
		fmt.Fprintf(&b, ";command=%s;entry_point=%s;flags=%s;out_format=%s",
			g.Command, g.EntryPoint, strings.Join(g.Flags, ","), g.OutFormat)
	case pipeline.ToolShell:
		s := t.Shell
		fmt.Fprintf(&b, ";command=%s;interpreter=%s", s.Command, s.Interpreter)
	}
	return b.String()
}

func canonicalInput(in pipeline.InputSpec) string {
	switch in.Kind {
	case pipeline.InputUpstream:
		return fmt.Sprintf("kind=upstream;from_stage=%s", in.FromStage)
	default:
		return fmt.Sprintf("kind=%s;patterns=%s", in.Kind, strings.Join(in.Patterns, ","))
	}
}

func canonicalOutput(out *pipeline.OutputSpec) string {
	if out == nil {
		return "none"
	}
	return fmt.Sprintf("kind=%s;path=%s;format=%s", out.Kind, out.Path, out.Format)
}
