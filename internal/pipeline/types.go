// Package pipeline holds the typed representation of a pipeline document:
// the stage graph's vocabulary (stages, tool bindings, input/output specs,
// cache policy) together with its deserializer. The package performs no
// semantic validation beyond what is required to decode a well-formed
// document; see Validate for structural checks.
package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var stageIDPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// Pipeline is the full parsed document: a named, versioned collection of
// stages with process-wide environment overrides and a cache policy.
type Pipeline struct {
	Version     string       `yaml:"version"`
	Name        string       `yaml:"name" validate:"required,min=1,max=100"`
	Description string       `yaml:"description,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Cache       CachePolicy  `yaml:"cache,omitempty"`
	Stages      []Stage      `yaml:"stages" validate:"required,min=1,dive"`
}

// CachePolicy controls whether and where stage results are memoized.
type CachePolicy struct {
	Enabled      bool   `yaml:"enabled"`
	Directory    string `yaml:"directory,omitempty"`
	Invalidation string `yaml:"invalidation,omitempty" validate:"omitempty,oneof=content-hash mtime manual"`
}

// ToolKind discriminates the tagged tool-binding variant a stage carries.
type ToolKind string

const (
	ToolSchema    ToolKind = "schema"    // T1: schema-validator/exporter tool (e.g. cue)
	ToolGenerator ToolKind = "generator" // T2: programmatic-generator tool (e.g. nickel)
	ToolShell     ToolKind = "shell"     // T3: ad-hoc shell command
)

// InputKind discriminates the input-specification variant.
type InputKind string

const (
	InputSingle   InputKind = "single"
	InputMultiple InputKind = "multiple"
	InputUpstream InputKind = "upstream"
)

// OutputKind discriminates the output-specification variant.
type OutputKind string

const (
	OutputFile      OutputKind = "file"
	OutputFormatted OutputKind = "formatted"
)

// Stage is a single unit of tool invocation within a pipeline.
type Stage struct {
	Name          string   `yaml:"name" validate:"required"`
	Description   string   `yaml:"description,omitempty"`
	DependsOn     []string `yaml:"depends_on,omitempty"`
	AllowFailure  bool     `yaml:"allow_failure,omitempty"`
	Env           map[string]string `yaml:"env,omitempty"`
	Condition     *Condition `yaml:"condition,omitempty"`

	Tool   ToolBinding
	Input  InputSpec
	Output *OutputSpec
}

// Condition gates whether a stage runs at all, evaluated before fingerprinting.
type Condition struct {
	FileExists  string `yaml:"file_exists,omitempty"`
	EnvSet      string `yaml:"env_set,omitempty"`
	EnvEquals   map[string]string `yaml:"env_equals,omitempty"`
}

// ToolBinding is the tagged sum of T1/T2/T3 tool variants. Exactly one of
// Schema, Generator, Shell is non-nil.
type ToolBinding struct {
	Kind      ToolKind
	Schema    *SchemaTool
	Generator *GeneratorTool
	Shell     *ShellTool
}

// SchemaTool (T1) drives a schema-validator/exporter CLI (e.g. cue).
type SchemaTool struct {
	Command    string   `yaml:"command" validate:"required,oneof=validate export eval format definition-print"`
	Schemas    []string `yaml:"schemas,omitempty"`
	Flags      []string `yaml:"flags,omitempty"`
	OutFormat  string   `yaml:"out_format,omitempty"`
}

// GeneratorTool (T2) drives a programmatic-generator CLI (e.g. nickel).
type GeneratorTool struct {
	Command    string `yaml:"command" validate:"required,oneof=export typecheck query format"`
	EntryPoint string `yaml:"entry_point,omitempty"`
	Flags      []string `yaml:"flags,omitempty"`
	OutFormat  string `yaml:"out_format,omitempty"`
}

// ShellTool (T3) runs an arbitrary shell command.
type ShellTool struct {
	Command     string `yaml:"command" validate:"required,min=1"`
	Interpreter string `yaml:"interpreter,omitempty"`
}

// InputSpec is the tagged sum of single-pattern / multi-pattern / upstream-reference input.
type InputSpec struct {
	Kind     InputKind
	Patterns []string // Single: len==1; Multiple: len>=1
	FromStage string  // Upstream
}

// OutputSpec is the tagged sum of plain-file / formatted-file output.
type OutputSpec struct {
	Kind   OutputKind
	Path   string
	Format string // only set when Kind == OutputFormatted
}

// DefaultCacheDirectory is the well-known hidden subdirectory used when a
// pipeline enables caching without naming a directory.
const DefaultCacheDirectory = ".conflow/cache"

// EffectiveCacheDirectory returns the cache directory, applying the default
// when the pipeline did not name one.
func (p *Pipeline) EffectiveCacheDirectory() string {
	if p.Cache.Directory != "" {
		return p.Cache.Directory
	}
	return DefaultCacheDirectory
}

// StageByName looks up a stage by its unique name.
func (p *Pipeline) StageByName(name string) (*Stage, bool) {
	for i := range p.Stages {
		if p.Stages[i].Name == name {
			return &p.Stages[i], true
		}
	}
	return nil, false
}

// StageNames enumerates stage names in document order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	return names
}

// EffectiveEnv merges the pipeline's global environment with the stage's
// local overrides; the stage wins on key collision.
func (p *Pipeline) EffectiveEnv(s *Stage) map[string]string {
	merged := make(map[string]string, len(p.Env)+len(s.Env))
	for k, v := range p.Env {
		merged[k] = v
	}
	for k, v := range s.Env {
		merged[k] = v
	}
	return merged
}

// ToolName returns a human-readable tag for the stage's tool binding, used
// in diagnostics and graph renderings.
func (s *Stage) ToolName() string {
	switch s.Tool.Kind {
	case ToolSchema:
		return "schema"
	case ToolGenerator:
		return "generator"
	case ToolShell:
		return "shell"
	default:
		return "unknown"
	}
}

// ReferencesStage returns the upstream stage name this stage's input
// depends on, if its input specification is an upstream reference.
func (s *Stage) ReferencesStage() (string, bool) {
	if s.Input.Kind == InputUpstream {
		return s.Input.FromStage, true
	}
	return "", false
}

// yamlStage is the wire shape decoded directly from YAML before being
// reshaped into the tagged-variant Stage above.
type yamlStage struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	DependsOn    []string          `yaml:"depends_on"`
	AllowFailure bool              `yaml:"allow_failure"`
	Env          map[string]string `yaml:"env"`
	Condition    *Condition        `yaml:"condition"`
	Tool         yaml.Node         `yaml:"tool"`
	Input        yaml.Node         `yaml:"input"`
	Output       yaml.Node         `yaml:"output"`
}

// UnmarshalYAML decodes a stage, discriminating its tool binding and input/
// output specification variants from the shapes on the wire.
func (s *Stage) UnmarshalYAML(value *yaml.Node) error {
	var raw yamlStage
	if err := value.Decode(&raw); err != nil {
		return err
	}

	s.Name = raw.Name
	s.Description = raw.Description
	s.DependsOn = append([]string(nil), raw.DependsOn...)
	s.AllowFailure = raw.AllowFailure
	s.Env = raw.Env
	s.Condition = raw.Condition

	tool, err := decodeTool(&raw.Tool)
	if err != nil {
		return fmt.Errorf("stage %q: %w", raw.Name, err)
	}
	s.Tool = tool

	input, err := decodeInput(&raw.Input)
	if err != nil {
		return fmt.Errorf("stage %q: %w", raw.Name, err)
	}
	s.Input = input

	output, err := decodeOutput(&raw.Output)
	if err != nil {
		return fmt.Errorf("stage %q: %w", raw.Name, err)
	}
	s.Output = output

	return nil
}

func decodeTool(node *yaml.Node) (ToolBinding, error) {
	if node == nil || node.Kind == 0 {
		return ToolBinding{}, fmt.Errorf("tool binding is required")
	}

	var discriminator struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&discriminator); err != nil {
		return ToolBinding{}, err
	}

	switch discriminator.Type {
	case "schema":
		var t SchemaTool
		if err := node.Decode(&t); err != nil {
			return ToolBinding{}, err
		}
		return ToolBinding{Kind: ToolSchema, Schema: &t}, nil
	case "generator":
		var t GeneratorTool
		if err := node.Decode(&t); err != nil {
			return ToolBinding{}, err
		}
		return ToolBinding{Kind: ToolGenerator, Generator: &t}, nil
	case "shell":
		var t ShellTool
		if err := node.Decode(&t); err != nil {
			return ToolBinding{}, err
		}
		return ToolBinding{Kind: ToolShell, Shell: &t}, nil
	default:
		return ToolBinding{}, fmt.Errorf("unknown tool type %q", discriminator.Type)
	}
}

func decodeInput(node *yaml.Node) (InputSpec, error) {
	if node == nil || node.Kind == 0 {
		return InputSpec{}, fmt.Errorf("input specification is required")
	}

	switch node.Kind {
	case yaml.ScalarNode:
		var pattern string
		if err := node.Decode(&pattern); err != nil {
			return InputSpec{}, err
		}
		return InputSpec{Kind: InputSingle, Patterns: []string{pattern}}, nil
	case yaml.SequenceNode:
		var patterns []string
		if err := node.Decode(&patterns); err != nil {
			return InputSpec{}, err
		}
		return InputSpec{Kind: InputMultiple, Patterns: patterns}, nil
	case yaml.MappingNode:
		var ref struct {
			FromStage string `yaml:"from_stage"`
		}
		if err := node.Decode(&ref); err != nil {
			return InputSpec{}, err
		}
		if ref.FromStage == "" {
			return InputSpec{}, fmt.Errorf("input mapping must set from_stage")
		}
		return InputSpec{Kind: InputUpstream, FromStage: ref.FromStage}, nil
	default:
		return InputSpec{}, fmt.Errorf("unsupported input shape")
	}
}

func decodeOutput(node *yaml.Node) (*OutputSpec, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil
	}

	switch node.Kind {
	case yaml.ScalarNode:
		var path string
		if err := node.Decode(&path); err != nil {
			return nil, err
		}
		return &OutputSpec{Kind: OutputFile, Path: path}, nil
	case yaml.MappingNode:
		var formatted struct {
			Path   string `yaml:"path"`
			Format string `yaml:"format"`
		}
		if err := node.Decode(&formatted); err != nil {
			return nil, err
		}
		if formatted.Path == "" {
			return nil, fmt.Errorf("output mapping must set path")
		}
		return &OutputSpec{Kind: OutputFormatted, Path: formatted.Path, Format: formatted.Format}, nil
	default:
		return nil, fmt.Errorf("unsupported output shape")
	}
}

// validStageID reports whether the given name satisfies the stage naming rule.
func validStageID(name string) bool {
	return stageIDPattern.MatchString(strings.TrimSpace(name))
}
