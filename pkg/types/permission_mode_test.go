// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"io/fs"
	"testing"
)

func TestPermissionMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mode     PermissionMode
		wantErr  bool
		wantStr  string
		wantPerm fs.FileMode
	}{
		{"read only file", 0o444, false, "0444", 0o444},
		{"traversable dir", 0o755, false, "0755", 0o755},
		{"zero", 0, false, "0000", 0},
		{"too large", 0o10000, true, "10000", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.mode.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPermissionMode) {
					t.Errorf("error should wrap ErrInvalidPermissionMode, got %v", err)
				}
				return
			}
			if got := tt.mode.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
			if got := tt.mode.FileMode(); got != tt.wantPerm {
				t.Errorf("FileMode() = %v, want %v", got, tt.wantPerm)
			}
		})
	}
}
