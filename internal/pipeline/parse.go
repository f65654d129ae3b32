package pipeline

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	conflowerrors "github.com/alexisbeaulieu97/conflow/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Parse decodes a pipeline document from raw bytes. It performs no
// semantic checks; callers should run Validate on the result.
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, conflowerrors.NewParseError("", extractLine(err), err)
	}
	if p.Version == "" {
		p.Version = "1"
	}
	if err := schemaValidate(&p); err != nil {
		return nil, conflowerrors.NewValidationError("", err.Error(), err)
	}
	return &p, nil
}

// ParseFile loads and decodes a pipeline document from disk.
func ParseFile(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, conflowerrors.NewParseError(path, 0, err)
	}

	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, conflowerrors.NewParseError(path, extractLine(err), err)
	}
	if p.Version == "" {
		p.Version = "1"
	}
	if err := schemaValidate(&p); err != nil {
		return nil, conflowerrors.NewValidationError("", err.Error(), err)
	}
	return &p, nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}
	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}
	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
