// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/invowk/makerel/pkg/types"
)

var (
	// ErrUsage marks an invalid command line.
	ErrUsage = errors.New("usage error")
	// ErrPrecondition marks an environment the run cannot start or continue in.
	ErrPrecondition = errors.New("precondition failed")
	// ErrValidation marks a mismatch between the manifest and a tree.
	ErrValidation = errors.New("validation failed")
	// ErrExternalTool marks a child process that exited non-zero or could not start.
	ErrExternalTool = errors.New("external tool failed")
	// ErrTranscode marks a file the encoding transcoder cannot process.
	ErrTranscode = errors.New("transcode failed")
	// ErrConfig marks unusable configuration or version metadata.
	ErrConfig = errors.New("configuration error")
)

// maxToolOutput bounds how much captured child output an ExternalToolError keeps.
const maxToolOutput = 2048

type (
	// UsageError is returned for positional arguments or bad flag values.
	UsageError struct {
		Message string
	}

	// PreconditionError reports a condition that must hold before a stage runs.
	PreconditionError struct {
		// Condition is a short statement of what was expected.
		Condition string
		// Path is the file or directory the condition is about (optional).
		Path string
	}

	// ValidationError reports every offending path at once.
	ValidationError struct {
		// Problem describes what is wrong with each path ("missing from tree").
		Problem string
		Paths   []string
	}

	// ExternalToolError reports a failed child process.
	ExternalToolError struct {
		// CommandLine is the shell-quoted command that failed.
		CommandLine string
		ExitCode    types.ExitCode
		// Output is the tail of the captured output, if any was captured.
		Output string
		// Err is set when the process could not be started at all.
		Err error
	}

	// TranscodeError identifies a file that could not be transcoded.
	TranscodeError struct {
		Path   string
		Reason string
	}

	// ConfigError reports bad configuration or unparsable version metadata.
	ConfigError struct {
		Source string
		Reason string
		Err    error
	}
)

func (e *UsageError) Error() string { return e.Message }

// Unwrap returns ErrUsage.
func (e *UsageError) Unwrap() error { return ErrUsage }

func (e *PreconditionError) Error() string {
	if e.Path == "" {
		return e.Condition
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Condition)
}

// Unwrap returns ErrPrecondition.
func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

func (e *ValidationError) Error() string {
	if len(e.Paths) == 1 {
		return fmt.Sprintf("%s: %s", e.Paths[0], e.Problem)
	}
	return fmt.Sprintf("%d paths %s:\n  %s", len(e.Paths), e.Problem, strings.Join(e.Paths, "\n  "))
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ExternalToolError) Error() string {
	var msg strings.Builder
	if e.Err != nil {
		fmt.Fprintf(&msg, "%s: %v", e.CommandLine, e.Err)
	} else {
		fmt.Fprintf(&msg, "%s: exit status %s", e.CommandLine, e.ExitCode)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg.WriteString("\n")
		msg.WriteString(out)
	}
	return msg.String()
}

// Unwrap returns ErrExternalTool. The start failure, if any, is reachable via Cause.
func (e *ExternalToolError) Unwrap() error { return ErrExternalTool }

// Cause returns the error that prevented the process from starting.
func (e *ExternalToolError) Cause() error { return e.Err }

// NewExternalToolError builds an ExternalToolError keeping only the tail of output.
func NewExternalToolError(commandLine string, code types.ExitCode, output []byte, err error) *ExternalToolError {
	if len(output) > maxToolOutput {
		output = output[len(output)-maxToolOutput:]
	}
	return &ExternalToolError{
		CommandLine: commandLine,
		ExitCode:    code,
		Output:      string(output),
		Err:         err,
	}
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Unwrap returns ErrTranscode.
func (e *TranscodeError) Unwrap() error { return ErrTranscode }

func (e *ConfigError) Error() string {
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Source, e.Reason)
	}
}

// Unwrap returns ErrConfig and, when set, the underlying error.
func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfig}
	}
	return []error{ErrConfig, e.Err}
}

// ExitCodeFor maps an error to the process exit code.
func ExitCodeFor(err error) types.ExitCode {
	switch {
	case err == nil:
		return types.ExitSuccess
	case errors.Is(err, ErrUsage):
		return types.ExitUsage
	default:
		return types.ExitFailure
	}
}
