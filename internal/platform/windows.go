// SPDX-License-Identifier: MPL-2.0

package platform

import "strings"

// windowsReservedNames are device names Windows refuses as a file or
// directory name regardless of extension.
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// IsWindowsReservedName reports whether name, with any extension removed, is
// a Windows device name.
func IsWindowsReservedName(name string) bool {
	upper := strings.ToUpper(name)
	if idx := strings.Index(upper, "."); idx != -1 {
		upper = upper[:idx]
	}
	return windowsReservedNames[upper]
}

// NonPortablePaths returns the slash-separated paths with at least one
// component that cannot be extracted on Windows, in input order.
func NonPortablePaths(paths []string) []string {
	var bad []string
	for _, p := range paths {
		for _, part := range strings.Split(p, "/") {
			if IsWindowsReservedName(part) {
				bad = append(bad, p)
				break
			}
		}
	}
	return bad
}
