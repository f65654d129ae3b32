package main

import (
	"os"

	"github.com/alexisbeaulieu97/conflow/internal/adapter"
	"github.com/alexisbeaulieu97/conflow/internal/adapter/generator"
	"github.com/alexisbeaulieu97/conflow/internal/adapter/schema"
	"github.com/alexisbeaulieu97/conflow/internal/adapter/shell"
	"github.com/alexisbeaulieu97/conflow/internal/logx"
	"github.com/alexisbeaulieu97/conflow/internal/pipeline"
)

func newLogger(flags *rootFlags) *logx.Logger {
	level := "info"
	if flags.verbose {
		level = "debug"
	}
	return logx.New(logx.Options{Level: level, HumanReadable: true, Writer: os.Stderr, Component: "cli"})
}

func loadPipeline(path string) (*pipeline.Pipeline, error) {
	return pipeline.ParseFile(path)
}

var installHints = map[pipeline.ToolKind]string{
	pipeline.ToolSchema:    "https://cuelang.org/docs/install/",
	pipeline.ToolGenerator: "https://nickel-lang.org/getting-started/",
}

// checkTools probes every adapter this pipeline's stages actually use and
// reports which tool kinds have no available binary, without running the
// pipeline.
func checkTools(p *pipeline.Pipeline) []pipeline.ToolKind {
	byKind := map[pipeline.ToolKind]adapter.Adapter{
		pipeline.ToolSchema:    schema.New(""),
		pipeline.ToolGenerator: generator.New(""),
		pipeline.ToolShell:     shell.New(),
	}

	used := map[pipeline.ToolKind]bool{}
	for _, s := range p.Stages {
		used[s.Tool.Kind] = true
	}

	var missing []pipeline.ToolKind
	for kind := range used {
		a, ok := byKind[kind]
		if !ok {
			missing = append(missing, kind)
			continue
		}
		available, err := a.ProbeAvailability()
		if err != nil || !available {
			missing = append(missing, kind)
		}
	}
	return missing
}
