// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "makerel"
	// ConfigFileName is the name of the user config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalFileName is the per-project config file looked up in the source root.
	LocalFileName = AppName + "." + ConfigFileExt
	// EnvPrefix prefixes environment variable overrides.
	EnvPrefix = "MAKEREL"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the makerel user configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, Linux and others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// newViper returns a viper instance holding the defaults and wired to
// MAKEREL_* environment overrides.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("name", d.Name)
	v.SetDefault("inputs.manifest", d.Inputs.Manifest)
	v.SetDefault("inputs.version_file", d.Inputs.VersionFile)
	v.SetDefault("inputs.exec_list", d.Inputs.ExecList)
	v.SetDefault("inputs.skip_file", d.Inputs.SkipFile)
	v.SetDefault("version.revision_define", d.Version.RevisionDefine)
	v.SetDefault("version.version_define", d.Version.VersionDefine)
	v.SetDefault("version.subversion_define", d.Version.SubversionDefine)
	v.SetDefault("version.uncommitted_marker", d.Version.UncommittedMarker)
	v.SetDefault("permissions.file_mode", uint32(d.Permissions.FileMode))
	v.SetDefault("permissions.dir_mode", uint32(d.Permissions.DirMode))
	v.SetDefault("permissions.writable", d.Permissions.Writable)
	v.SetDefault("transcode.codepage", d.Transcode.CodePage)
	v.SetDefault("archive.tar", d.Archive.Tar)
	v.SetDefault("archive.sevenzip", d.Archive.SevenZip)
	v.SetDefault("archive.gzip", d.Archive.Gzip)
	v.SetDefault("archive.advdef", d.Archive.Advdef)
	v.SetDefault("archive.xz", d.Archive.Xz)
	v.SetDefault("clean.build", d.Clean.Build)
	v.SetDefault("clean.build_marker", d.Clean.BuildMarker)
	v.SetDefault("clean.vcs", d.Clean.VCS)
	v.SetDefault("log.level", string(d.Log.Level))
	return v
}

// loadWithOptions performs option-driven config loading. It never touches
// package-level state, so concurrent loads with different options are safe.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	v := newViper()

	path, err := resolvePath(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'makerel config show' to see the effective configuration").
				Wrap(&issue.ConfigError{Source: path, Err: err}).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &issue.ConfigError{Source: "configuration", Reason: "failed to decode", Err: err}
	}
	cfg.Source = path

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check " + EnvPrefix + "_* environment variables for empty or malformed values").
			Wrap(&issue.ConfigError{Source: sourceName(path), Err: err}).
			BuildError()
	}
	return &cfg, nil
}

// resolvePath picks the config file: the explicit path (which must exist),
// then {BaseDir}/makerel.cue, then {config dir}/config.cue. An empty result
// means defaults only.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		path := string(opts.ConfigFilePath)
		if !fileExists(path) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(&issue.ConfigError{Source: path, Reason: "config file not found"}).
				BuildError()
		}
		return path, nil
	}

	local := filepath.Join(string(opts.BaseDir), LocalFileName)
	if fileExists(local) {
		return local, nil
	}

	cfgDir := string(opts.ConfigDirPath)
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			// No home directory: nothing to look up, defaults apply.
			return "", nil
		}
		cfgDir = dir
	}
	user := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(user) {
		return user, nil
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// v. Fields the file leaves out keep their defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.DecodeMap(configSchema, data, "#Config", cueutil.WithFilename(path))
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func sourceName(path string) string {
	if path == "" {
		return "defaults and environment"
	}
	return path
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a CUE document accepted by the schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// makerel configuration\n")
	if cfg.Source != "" {
		fmt.Fprintf(&sb, "// loaded from %s\n", cfg.Source)
	}
	fmt.Fprintf(&sb, "\nname: %q\n", cfg.Name)

	sb.WriteString("\ninputs: {\n")
	fmt.Fprintf(&sb, "\tmanifest:     %q\n", cfg.Inputs.Manifest)
	fmt.Fprintf(&sb, "\tversion_file: %q\n", cfg.Inputs.VersionFile)
	fmt.Fprintf(&sb, "\texec_list:    %q\n", cfg.Inputs.ExecList)
	fmt.Fprintf(&sb, "\tskip_file:    %q\n", cfg.Inputs.SkipFile)
	sb.WriteString("}\n")

	sb.WriteString("\nversion: {\n")
	fmt.Fprintf(&sb, "\trevision_define:    %q\n", cfg.Version.RevisionDefine)
	fmt.Fprintf(&sb, "\tversion_define:     %q\n", cfg.Version.VersionDefine)
	fmt.Fprintf(&sb, "\tsubversion_define:  %q\n", cfg.Version.SubversionDefine)
	fmt.Fprintf(&sb, "\tuncommitted_marker: %q\n", cfg.Version.UncommittedMarker)
	sb.WriteString("}\n")

	sb.WriteString("\npermissions: {\n")
	fmt.Fprintf(&sb, "\tfile_mode: 0o%o\n", uint32(cfg.Permissions.FileMode))
	fmt.Fprintf(&sb, "\tdir_mode:  0o%o\n", uint32(cfg.Permissions.DirMode))
	writeList(&sb, "\t", "writable", cfg.Permissions.Writable, true)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\ntranscode: codepage: %q\n", cfg.Transcode.CodePage)

	sb.WriteString("\narchive: {\n")
	writeList(&sb, "\t", "tar", cfg.Archive.Tar, false)
	writeList(&sb, "\t", "sevenzip", cfg.Archive.SevenZip, false)
	writeList(&sb, "\t", "gzip", cfg.Archive.Gzip, false)
	writeList(&sb, "\t", "advdef", cfg.Archive.Advdef, false)
	writeList(&sb, "\t", "xz", cfg.Archive.Xz, false)
	sb.WriteString("}\n")

	sb.WriteString("\nclean: {\n")
	writeList(&sb, "\t", "build", cfg.Clean.Build, false)
	fmt.Fprintf(&sb, "\tbuild_marker: %q\n", cfg.Clean.BuildMarker)
	writeList(&sb, "\t", "vcs", cfg.Clean.VCS, false)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nlog: level: %q\n", cfg.Log.Level)
	return sb.String()
}

func writeList(sb *strings.Builder, indent, key string, items []string, multiline bool) {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	if !multiline || len(items) == 0 {
		fmt.Fprintf(sb, "%s%s: [%s]\n", indent, key, strings.Join(quoted, ", "))
		return
	}
	fmt.Fprintf(sb, "%s%s: [\n", indent, key)
	for _, q := range quoted {
		fmt.Fprintf(sb, "%s\t%s,\n", indent, q)
	}
	fmt.Fprintf(sb, "%s]\n", indent)
}
