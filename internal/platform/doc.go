// SPDX-License-Identifier: MPL-2.0

// Package platform answers questions about the host a release is built on
// and the hosts it will be unpacked on.
package platform
