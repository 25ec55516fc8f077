// SPDX-License-Identifier: MPL-2.0

// Package version derives the release identity from the C header that is the
// source of truth for the interpreter version.
//
// The header is read as a sequence of preprocessor directives, not scraped
// with one regular expression: Parse collects every #define into a table and
// separately extracts the rows of the local_patches array. The result is a
// typed Identity from which release names are built.
package version
