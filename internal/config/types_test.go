// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"

	"github.com/invowk/makerel/pkg/types"
)

func TestLogLevel_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level   LogLevel
		wantErr bool
	}{
		{LogLevelDebug, false},
		{LogLevelInfo, false},
		{LogLevelWarn, false},
		{LogLevelError, false},
		{"", true},
		{"INFO", true},
		{"trace", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			err := tt.level.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidLogLevel) {
				t.Errorf("error should wrap ErrInvalidLogLevel, got %v", err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Name = ""
	cfg.Inputs.Manifest = "  "
	cfg.Permissions.FileMode = types.PermissionMode(0o10000)
	cfg.Archive.Xz = nil

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
	}
	var ice *InvalidConfigError
	if !errors.As(err, &ice) {
		t.Fatalf("error should be *InvalidConfigError, got %T", err)
	}
	if len(ice.FieldErrors) != 4 {
		t.Errorf("FieldErrors = %v, want 4 entries", ice.FieldErrors)
	}
	if !errors.Is(err, types.ErrInvalidPermissionMode) || !errors.Is(err, types.ErrInvalidFilesystemPath) {
		t.Errorf("field errors should keep their own sentinels, got %v", ice.FieldErrors)
	}
}

func TestLoadOptions_Validate(t *testing.T) {
	t.Parallel()

	if err := (LoadOptions{}).Validate(); err != nil {
		t.Errorf("empty LoadOptions should be valid, got %v", err)
	}
	opts := LoadOptions{ConfigFilePath: "/tmp/makerel.cue", BaseDir: "\t"}
	err := opts.Validate()
	if !errors.Is(err, ErrInvalidLoadOptions) {
		t.Fatalf("Validate() error = %v, want ErrInvalidLoadOptions", err)
	}
	var loadErr *InvalidLoadOptionsError
	if !errors.As(err, &loadErr) || len(loadErr.FieldErrors) != 1 {
		t.Errorf("error = %#v, want one field error", err)
	}
}
