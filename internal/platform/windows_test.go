// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"reflect"
	"testing"
)

func TestIsWindowsReservedName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"CON", true},
		{"con", true},
		{"aux.c", true},
		{"nul.tar.gz", true},
		{"LPT9", true},
		{"COM10", false},
		{"console.c", false},
		{"perl.c", false},
	}
	for _, tt := range tests {
		if got := IsWindowsReservedName(tt.name); got != tt.want {
			t.Errorf("IsWindowsReservedName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNonPortablePaths(t *testing.T) {
	t.Parallel()

	paths := []string{"perl.c", "t/aux/test.t", "lib/Con.pm", "prn"}
	want := []string{"t/aux/test.t", "lib/Con.pm", "prn"}
	if got := NonPortablePaths(paths); !reflect.DeepEqual(got, want) {
		t.Errorf("NonPortablePaths() = %v, want %v", got, want)
	}
}
