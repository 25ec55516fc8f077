// SPDX-License-Identifier: MPL-2.0

// Package archive turns a staged release directory into compressed tarballs
// by driving external archivers through a runner.Runner.
package archive
