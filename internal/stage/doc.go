// SPDX-License-Identifier: MPL-2.0

// Package stage creates the release directory and fills it from the manifest.
//
// Staging refuses to touch an existing release directory or archive; the
// operator removes leftovers with Clean, which is also where the build and
// version control clean commands run.
package stage
