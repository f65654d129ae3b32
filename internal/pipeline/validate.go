package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidationReport is the outcome of running the structural validator:
// two lists, errors and warnings. A pipeline is valid iff Errors is empty;
// warnings are informational only.
type ValidationReport struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether the pipeline passed structural validation.
func (r *ValidationReport) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationReport) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationReport) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate runs the structural checks of rules E1-E3, E5, E6 and W1-W2. It
// does not detect dependency cycles (E4); graph.Build does. It does not
// touch the filesystem; see CheckFilesExist for the optional presence check.
func Validate(p *Pipeline) *ValidationReport {
	report := &ValidationReport{}

	// E1: at least one stage.
	if len(p.Stages) == 0 {
		report.addError("pipeline must declare at least one stage")
		return report
	}

	// E2: unique stage names.
	seen := make(map[string]int, len(p.Stages))
	for i, s := range p.Stages {
		if s.Name == "" {
			report.addError("stage at index %d has no name", i)
			continue
		}
		if !validStageID(s.Name) {
			report.addError("stage %q has an invalid name", s.Name)
		}
		if prev, ok := seen[s.Name]; ok {
			report.addError("duplicate stage name %q (first declared at index %d, again at %d)", s.Name, prev, i)
			continue
		}
		seen[s.Name] = i
	}

	// E3/E5: depends_on and upstream references resolve to defined stages.
	for _, s := range p.Stages {
		for _, dep := range s.DependsOn {
			if _, ok := seen[dep]; !ok {
				report.addError("stage %q depends on unknown stage %q", s.Name, dep)
			}
		}
		if ref, ok := s.ReferencesStage(); ok {
			if _, known := seen[ref]; !known {
				report.addError("stage %q input references unknown stage %q", s.Name, ref)
			} else if !containsString(s.DependsOn, ref) {
				// W1: implicit dependency not declared explicitly.
				report.addWarning("stage %q references %q as input but does not list it in depends_on; the dependency is added implicitly", s.Name, ref)
			}
		}
	}

	// E6: per-tool structural rules.
	for _, s := range p.Stages {
		validateToolShape(&s, report)
		validateInputShape(&s, report)
	}

	// W2: T1 validate with no schema files declared.
	for _, s := range p.Stages {
		if s.Tool.Kind == ToolSchema && s.Tool.Schema != nil && s.Tool.Schema.Command == "validate" && len(s.Tool.Schema.Schemas) == 0 {
			report.addWarning("stage %q validates with no schema files declared; validation is trivially satisfied", s.Name)
		}
	}

	return report
}

func validateToolShape(s *Stage, report *ValidationReport) {
	switch s.Tool.Kind {
	case ToolShell:
		if s.Tool.Shell == nil || strings.TrimSpace(s.Tool.Shell.Command) == "" {
			report.addError("stage %q: shell command must be non-empty", s.Name)
		}
	case ToolSchema:
		if s.Tool.Schema == nil {
			report.addError("stage %q: schema tool configuration missing", s.Name)
			return
		}
		if s.Tool.Schema.Command == "export" && !stageCanProduceInput(s) {
			report.addError("stage %q: export requires an entry point, input pattern, or upstream reference", s.Name)
		}
	case ToolGenerator:
		if s.Tool.Generator == nil {
			report.addError("stage %q: generator tool configuration missing", s.Name)
			return
		}
		if s.Tool.Generator.Command == "export" && !stageCanProduceInput(s) {
			report.addError("stage %q: export requires an entry point, input pattern, or upstream reference", s.Name)
		}
	default:
		report.addError("stage %q: no tool binding", s.Name)
	}
}

func stageCanProduceInput(s *Stage) bool {
	if s.Tool.Kind == ToolGenerator && s.Tool.Generator != nil && s.Tool.Generator.EntryPoint != "" {
		return true
	}
	switch s.Input.Kind {
	case InputUpstream:
		return s.Input.FromStage != ""
	case InputSingle, InputMultiple:
		return len(s.Input.Patterns) > 0
	}
	return false
}

func validateInputShape(s *Stage, report *ValidationReport) {
	switch s.Input.Kind {
	case InputSingle, InputMultiple:
		if len(s.Input.Patterns) == 0 {
			report.addError("stage %q: input pattern list must be non-empty", s.Name)
		}
		for _, pattern := range s.Input.Patterns {
			if strings.TrimSpace(pattern) == "" {
				report.addError("stage %q: input pattern must be a non-empty string", s.Name)
			}
		}
	case InputUpstream:
		if s.Input.FromStage == "" {
			report.addError("stage %q: upstream reference must name a stage", s.Name)
		}
	default:
		report.addError("stage %q: no input specification", s.Name)
	}
}

func containsString(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// CheckFilesExist performs the optional file-presence check: declared
// schema files and generator entry points must exist relative to
// workspaceRoot. It is not required for validity and is invoked at the
// caller's option.
func CheckFilesExist(p *Pipeline, workspaceRoot string) []string {
	var problems []string

	checkPath := func(stageName, kind, rel string) {
		abs := rel
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(workspaceRoot, rel)
		}
		if _, err := os.Stat(abs); err != nil {
			problems = append(problems, fmt.Sprintf("stage %q: %s %q not found", stageName, kind, rel))
		}
	}

	for _, s := range p.Stages {
		switch s.Tool.Kind {
		case ToolSchema:
			for _, schema := range s.Tool.Schema.Schemas {
				checkPath(s.Name, "schema file", schema)
			}
		case ToolGenerator:
			if s.Tool.Generator.EntryPoint != "" {
				checkPath(s.Name, "entry point", s.Tool.Generator.EntryPoint)
			}
		}
	}

	return problems
}
