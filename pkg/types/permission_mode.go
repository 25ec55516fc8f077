// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrInvalidPermissionMode is the sentinel error wrapped by InvalidPermissionModeError.
var ErrInvalidPermissionMode = errors.New("invalid permission mode")

type (
	// PermissionMode is a Unix permission value such as 0o444.
	// Only the permission and setuid/setgid/sticky bits are accepted.
	PermissionMode uint32

	// InvalidPermissionModeError is returned when a PermissionMode has bits
	// outside 0o7777.
	InvalidPermissionModeError struct {
		Value PermissionMode
	}
)

// Validate returns an error if the mode carries bits outside 0o7777.
func (m PermissionMode) Validate() error {
	if m > 0o7777 {
		return &InvalidPermissionModeError{Value: m}
	}
	return nil
}

// FileMode converts the value to an fs.FileMode permission set.
func (m PermissionMode) FileMode() fs.FileMode { return fs.FileMode(m) & fs.ModePerm }

// String renders the mode in the familiar four-digit octal form.
func (m PermissionMode) String() string { return fmt.Sprintf("%04o", uint32(m)) }

// Error implements the error interface.
func (e *InvalidPermissionModeError) Error() string {
	return fmt.Sprintf("invalid permission mode %o (must be at most 7777)", uint32(e.Value))
}

// Unwrap returns ErrInvalidPermissionMode for errors.Is() compatibility.
func (e *InvalidPermissionModeError) Unwrap() error { return ErrInvalidPermissionMode }
