// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/pkg/types"
)

// isolated returns options that only see files under a fresh temp dir.
func isolated(t *testing.T) (LoadOptions, string) {
	t.Helper()
	dir := t.TempDir()
	return LoadOptions{
		BaseDir:       types.FilesystemPath(dir),
		ConfigDirPath: types.FilesystemPath(filepath.Join(dir, "user")),
	}, dir
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Name != "perl" {
		t.Errorf("Name = %q, want perl", cfg.Name)
	}
	if cfg.Inputs.Manifest != "MANIFEST" || cfg.Inputs.VersionFile != "patchlevel.h" {
		t.Errorf("Inputs = %+v", cfg.Inputs)
	}
	if cfg.Permissions.FileMode != 0o444 || cfg.Permissions.DirMode != 0o755 {
		t.Errorf("Permissions modes = %v/%v", cfg.Permissions.FileMode, cfg.Permissions.DirMode)
	}
	if !reflect.DeepEqual(cfg.Permissions.Writable, DefaultWritable) {
		t.Error("default writable list differs from DefaultWritable")
	}
	cfg.Permissions.Writable[0] = "changed"
	if DefaultWritable[0] == "changed" {
		t.Error("DefaultConfig must not share the DefaultWritable backing array")
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG lookup applies to Linux and other Unix systems")
	}
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join(xdg, AppName); dir != want {
		t.Errorf("ConfigDir() = %q, want %q", dir, want)
	}
}

func TestLoad_DefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	opts, _ := isolated(t)
	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
	want := DefaultConfig()
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("Load() = %+v\nwant %+v", cfg, want)
	}
}

func TestLoad_LookupOrder(t *testing.T) {
	t.Parallel()

	opts, dir := isolated(t)
	user := filepath.Join(string(opts.ConfigDirPath), ConfigFileName+"."+ConfigFileExt)
	local := filepath.Join(dir, LocalFileName)
	explicit := filepath.Join(dir, "release.cue")

	writeConfig(t, user, `name: "user"`)
	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil || cfg.Name != "user" || cfg.Source != user {
		t.Fatalf("user config: cfg = %+v, err = %v", cfg, err)
	}

	writeConfig(t, local, `name: "local"`)
	cfg, err = NewProvider().Load(context.Background(), opts)
	if err != nil || cfg.Name != "local" || cfg.Source != local {
		t.Fatalf("local config: cfg = %+v, err = %v", cfg, err)
	}

	writeConfig(t, explicit, `name: "explicit"`)
	opts.ConfigFilePath = types.FilesystemPath(explicit)
	cfg, err = NewProvider().Load(context.Background(), opts)
	if err != nil || cfg.Name != "explicit" || cfg.Source != explicit {
		t.Fatalf("explicit config: cfg = %+v, err = %v", cfg, err)
	}
}

func TestLoad_MergesWithDefaults(t *testing.T) {
	t.Parallel()

	opts, dir := isolated(t)
	writeConfig(t, filepath.Join(dir, LocalFileName), `
permissions: {
	file_mode: 0o440
	writable: ["config.h"]
}
archive: gzip: ["pigz", "-11", "--stdout"]
transcode: codepage: "037"
`)
	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Permissions.FileMode != 0o440 {
		t.Errorf("FileMode = %v, want 0440", cfg.Permissions.FileMode)
	}
	if cfg.Permissions.DirMode != 0o755 {
		t.Errorf("DirMode = %v, want default 0755", cfg.Permissions.DirMode)
	}
	if !reflect.DeepEqual(cfg.Permissions.Writable, []string{"config.h"}) {
		t.Errorf("Writable = %v", cfg.Permissions.Writable)
	}
	if !reflect.DeepEqual(cfg.Archive.Gzip, []string{"pigz", "-11", "--stdout"}) {
		t.Errorf("Gzip = %v", cfg.Archive.Gzip)
	}
	if !reflect.DeepEqual(cfg.Archive.Tar, DefaultConfig().Archive.Tar) {
		t.Errorf("Tar = %v, want the default", cfg.Archive.Tar)
	}
	if cfg.Transcode.CodePage != "037" {
		t.Errorf("CodePage = %q", cfg.Transcode.CodePage)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("MAKEREL_NAME", "cperl")
	t.Setenv("MAKEREL_PERMISSIONS_DIR_MODE", "0750")
	t.Setenv("MAKEREL_LOG_LEVEL", "debug")

	opts, _ := isolated(t)
	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Name != "cperl" {
		t.Errorf("Name = %q, want cperl", cfg.Name)
	}
	if cfg.Permissions.DirMode != 0o750 {
		t.Errorf("DirMode = %v, want 0750", cfg.Permissions.DirMode)
	}
	if cfg.Log.Level != LogLevelDebug {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoad_InvalidEnvironmentOverride(t *testing.T) {
	t.Setenv("MAKEREL_LOG_LEVEL", "chatty")

	opts, _ := isolated(t)
	_, err := NewProvider().Load(context.Background(), opts)
	if !errors.Is(err, ErrInvalidLogLevel) {
		t.Fatalf("Load() error = %v, want ErrInvalidLogLevel", err)
	}
	if !errors.Is(err, issue.ErrConfig) {
		t.Error("error should also classify as a config error")
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"wrong type", `name: 123`, "name"},
		{"unknown field", `archive: zstd: ["zstd"]`, "zstd"},
		{"empty argv", `clean: vcs: []`, "clean.vcs"},
		{"mode out of range", `permissions: dir_mode: 0o17777`, "dir_mode"},
		{"unsupported codepage", `transcode: codepage: "500"`, "codepage"},
		{"syntax", `this is not valid CUE syntax {{{{`, LocalFileName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts, dir := isolated(t)
			path := filepath.Join(dir, LocalFileName)
			writeConfig(t, path, tt.content)

			_, err := NewProvider().Load(context.Background(), opts)
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !errors.Is(err, issue.ErrConfig) {
				t.Errorf("error should wrap ErrConfig, got %v", err)
			}
			msg := err.Error()
			if !strings.Contains(msg, "load configuration") || !strings.Contains(msg, path) {
				t.Errorf("error should name the operation and file, got %q", msg)
			}
			if !strings.Contains(msg, tt.want) {
				t.Errorf("error should mention %q, got %q", tt.want, msg)
			}
		})
	}
}

func TestLoad_CustomPath_NotFound(t *testing.T) {
	t.Parallel()

	opts, dir := isolated(t)
	missing := filepath.Join(dir, "does-not-exist.cue")
	opts.ConfigFilePath = types.FilesystemPath(missing)

	_, err := NewProvider().Load(context.Background(), opts)
	if err == nil {
		t.Fatal("Load() should fail for a missing --config file")
	}
	if !strings.Contains(err.Error(), "config file not found") || !strings.Contains(err.Error(), missing) {
		t.Errorf("error = %q", err.Error())
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatal("expected error to be *issue.ActionableError")
	}
	found := false
	for _, s := range ae.Suggestions {
		if strings.Contains(s, "Verify the file path is correct") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("suggestions = %v", ae.Suggestions)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts, _ := isolated(t)
	if _, err := NewProvider().Load(ctx, opts); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUE_LoadsBack(t *testing.T) {
	t.Parallel()

	want := DefaultConfig()
	want.Name = "cperl"
	want.Permissions.FileMode = 0o440
	want.Permissions.Writable = []string{"config.h", "win32/Makefile"}
	want.Archive.Advdef = []string{"advdef", "-z", "-3"}
	want.Log.Level = LogLevelWarn

	opts, dir := isolated(t)
	path := filepath.Join(dir, LocalFileName)
	writeConfig(t, path, GenerateCUE(want))

	got, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load(GenerateCUE()) error = %v", err)
	}
	want.Source = path
	if !reflect.DeepEqual(got, want) {
		t.Errorf("loaded config differs:\n got %+v\nwant %+v", got, want)
	}
}
