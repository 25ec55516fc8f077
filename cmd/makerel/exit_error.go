// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
	// Message, when set, replaces Err's text in what the user sees.
	Message string
}

func (e *ExitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// newExitError classifies err and renders it for display. A nil err stays nil.
func newExitError(err error, verbose bool) error {
	if err == nil {
		return nil
	}
	return &ExitError{
		Code:    issue.ExitCodeFor(err),
		Err:     err,
		Message: formatErrorForDisplay(err, verbose),
	}
}
