package cli

import (
	"errors"
	"fmt"
)

// Exit codes returned by the verdict command.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitConfigErr  = 2
	ExitValidation = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError reports that rules failed validation. The findings
// themselves have already been printed.
type ValidationError struct {
	Errors int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s)", e.Errors)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var configErr *ConfigError
	var validationErr *ValidationError
	switch {
	case errors.As(err, &configErr):
		return ExitConfigErr
	case errors.As(err, &validationErr):
		return ExitValidation
	default:
		return ExitFailure
	}
}
