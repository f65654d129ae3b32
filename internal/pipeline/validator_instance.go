package pipeline

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

func sharedValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New()
	})
	return validatorInst
}

// schemaValidate runs the struct-tag-level "required field" checks that are
// part of construct-from-text (spec: "a schema error when required fields
// are absent"), independent of the semantic structural validator in validate.go.
func schemaValidate(p *Pipeline) error {
	return sharedValidator().Struct(p)
}
