package pipeline

import "gopkg.in/yaml.v3"

// MarshalYAML reshapes a Stage back into its wire form so that Marshal
// round-trips a parsed Pipeline back to the document shape it came from.
func (s Stage) MarshalYAML() (interface{}, error) {
	out := map[string]interface{}{
		"name": s.Name,
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.DependsOn) > 0 {
		out["depends_on"] = s.DependsOn
	}
	if s.AllowFailure {
		out["allow_failure"] = s.AllowFailure
	}
	if len(s.Env) > 0 {
		out["env"] = s.Env
	}
	if s.Condition != nil {
		out["condition"] = s.Condition
	}
	out["tool"] = s.Tool.marshalMap()

	switch s.Input.Kind {
	case InputSingle:
		out["input"] = s.Input.Patterns[0]
	case InputMultiple:
		out["input"] = s.Input.Patterns
	case InputUpstream:
		out["input"] = map[string]string{"from_stage": s.Input.FromStage}
	}

	if s.Output != nil {
		switch s.Output.Kind {
		case OutputFile:
			out["output"] = s.Output.Path
		case OutputFormatted:
			out["output"] = map[string]string{"path": s.Output.Path, "format": s.Output.Format}
		}
	}

	return out, nil
}

func (t ToolBinding) marshalMap() map[string]interface{} {
	switch t.Kind {
	case ToolSchema:
		m := map[string]interface{}{"type": "schema", "command": t.Schema.Command}
		if len(t.Schema.Schemas) > 0 {
			m["schemas"] = t.Schema.Schemas
		}
		if len(t.Schema.Flags) > 0 {
			m["flags"] = t.Schema.Flags
		}
		if t.Schema.OutFormat != "" {
			m["out_format"] = t.Schema.OutFormat
		}
		return m
	case ToolGenerator:
		m := map[string]interface{}{"type": "generator", "command": t.Generator.Command}
		if t.Generator.EntryPoint != "" {
			m["entry_point"] = t.Generator.EntryPoint
		}
		if len(t.Generator.Flags) > 0 {
			m["flags"] = t.Generator.Flags
		}
		if t.Generator.OutFormat != "" {
			m["out_format"] = t.Generator.OutFormat
		}
		return m
	case ToolShell:
		m := map[string]interface{}{"type": "shell", "command": t.Shell.Command}
		if t.Shell.Interpreter != "" {
			m["interpreter"] = t.Shell.Interpreter
		}
		return m
	default:
		return map[string]interface{}{}
	}
}

// Marshal serializes the pipeline back into YAML-shaped text.
func (p *Pipeline) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
