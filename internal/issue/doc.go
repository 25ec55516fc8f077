// SPDX-License-Identifier: MPL-2.0

// Package issue defines the error taxonomy of a release run and the
// actionable error wrapper used to present failures to the operator.
//
// Every failure class has a sentinel (ErrUsage, ErrPrecondition, ErrValidation,
// ErrExternalTool, ErrTranscode, ErrConfig) and a typed error that unwraps to it,
// so callers classify with errors.Is and extract details with errors.As.
// ActionableError adds the operation, the resource and remediation hints on top.
package issue
