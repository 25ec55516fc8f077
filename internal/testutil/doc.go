// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that build and inspect
// throwaway source trees.
//
// The Must* helpers fail the test immediately instead of returning errors,
// which keeps table-driven tests short. WriteTree and SourceTree build the
// working trees the release stages operate on.
package testutil
