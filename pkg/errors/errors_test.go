package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("config.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "config.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "config.yaml")
}

func TestValidationErrorAggregatesFields(t *testing.T) {
	t.Parallel()

	err := NewValidationError("steps[1].depends_on", "references unknown step", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "steps[1].depends_on", validationErr.Field)
	require.Contains(t, err.Error(), "references unknown step")
}

func TestCircularDependencyErrorListsMembers(t *testing.T) {
	t.Parallel()

	err := NewCircularDependencyError([]string{"x", "y", "x"})

	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	require.Equal(t, []string{"x", "y", "x"}, cycleErr.Members)
	require.Contains(t, err.Error(), "x -> y -> x")
}

func TestResourceMissingErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewResourceMissingError("tool", "cue", "validate-config")
	require.Contains(t, err.Error(), "cue")
	require.Contains(t, err.Error(), "validate-config")
}

func TestIOErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("permission denied")
	err := NewIOError("write", "/tmp/out.json", underlying)

	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "/tmp/out.json")
}

func TestExecutionErrorCarriesExitCodeAndStderr(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("exit status 1")
	err := NewExecutionError("build", 1, "boom", underlying)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, 1, execErr.ExitCode)
	require.Equal(t, "boom", execErr.Stderr)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestOrderingErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewOrderingError("b", "a")
	require.Contains(t, err.Error(), `"b"`)
	require.Contains(t, err.Error(), `"a"`)
}
