// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/invowk/makerel/internal/archive"
	"github.com/invowk/makerel/pkg/types"
)

const (
	// LogLevelDebug logs every external command and file decision.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs one line per pipeline stage.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings and errors only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	// DefaultWritable lists the generated files that regeneration scripts
	// rewrite in place, so they stay owner-writable in the release.
	DefaultWritable = []string{
		"embed.h",
		"keywords.h",
		"opcode.h",
		"opnames.h",
		"perly.act",
		"perly.h",
		"perly.tab",
		"pp_proto.h",
		"proto.h",
		"regnodes.h",
		"warnings.h",
		"lib/warnings.pm",
		"feature.h",
		"lib/feature.pm",
		"mg_names.inc",
		"mg_raw.h",
		"mg_vtable.h",
		"overload.h",
		"overload.inc",
		"lib/overload/numbers.pm",
		"regcharclass.h",
		"l1_char_class_tab.h",
		"charclass_invlists.h",
		"uni_keywords.h",
		"uconfig.h",
		"win32/GNUmakefile",
		"win32/Makefile",
		"win32/config_H.gc",
	}
)

type (
	// LogLevel is the minimum level written to stderr.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError collects every field-level problem of a Config.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Name is the project name; releases are called {name}-{version}.
		Name        string            `json:"name" mapstructure:"name"`
		Inputs      InputsConfig      `json:"inputs" mapstructure:"inputs"`
		Version     VersionConfig     `json:"version" mapstructure:"version"`
		Permissions PermissionsConfig `json:"permissions" mapstructure:"permissions"`
		Transcode   TranscodeConfig   `json:"transcode" mapstructure:"transcode"`
		Archive     ArchiveConfig     `json:"archive" mapstructure:"archive"`
		Clean       CleanConfig       `json:"clean" mapstructure:"clean"`
		Log         LogConfig         `json:"log" mapstructure:"log"`

		// Source is the file the configuration was read from, empty for defaults.
		Source string `json:"-" mapstructure:"-"`
	}

	// InputsConfig names the files a release is built from, relative to the
	// source root.
	InputsConfig struct {
		Manifest    string `json:"manifest" mapstructure:"manifest"`
		VersionFile string `json:"version_file" mapstructure:"version_file"`
		ExecList    string `json:"exec_list" mapstructure:"exec_list"`
		SkipFile    string `json:"skip_file" mapstructure:"skip_file"`
	}

	// VersionConfig names the defines of the version header.
	VersionConfig struct {
		RevisionDefine    string `json:"revision_define" mapstructure:"revision_define"`
		VersionDefine     string `json:"version_define" mapstructure:"version_define"`
		SubversionDefine  string `json:"subversion_define" mapstructure:"subversion_define"`
		UncommittedMarker string `json:"uncommitted_marker" mapstructure:"uncommitted_marker"`
	}

	// PermissionsConfig drives permission normalization of the staged tree.
	PermissionsConfig struct {
		FileMode types.PermissionMode `json:"file_mode" mapstructure:"file_mode"`
		DirMode  types.PermissionMode `json:"dir_mode" mapstructure:"dir_mode"`
		Writable []string             `json:"writable" mapstructure:"writable"`
	}

	// TranscodeConfig selects the EBCDIC target.
	TranscodeConfig struct {
		CodePage string `json:"codepage" mapstructure:"codepage"`
	}

	// ArchiveConfig holds the argv prefix of every archiver and compressor.
	ArchiveConfig struct {
		Tar      []string `json:"tar" mapstructure:"tar"`
		SevenZip []string `json:"sevenzip" mapstructure:"sevenzip"`
		Gzip     []string `json:"gzip" mapstructure:"gzip"`
		Advdef   []string `json:"advdef" mapstructure:"advdef"`
		Xz       []string `json:"xz" mapstructure:"xz"`
	}

	// CleanConfig holds the commands run by --clean.
	CleanConfig struct {
		Build       []string `json:"build" mapstructure:"build"`
		BuildMarker string   `json:"build_marker" mapstructure:"build_marker"`
		VCS         []string `json:"vcs" mapstructure:"vcs"`
	}

	// LogConfig configures stderr logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}
)

// DefaultConfig returns the built-in configuration for a perl source tree.
func DefaultConfig() *Config {
	tools := archive.DefaultTools()
	return &Config{
		Name: "perl",
		Inputs: InputsConfig{
			Manifest:    "MANIFEST",
			VersionFile: "patchlevel.h",
			ExecList:    "Porting/exec-bit.txt",
			SkipFile:    "MANIFEST.SKIP",
		},
		Version: VersionConfig{
			RevisionDefine:    "PERL_REVISION",
			VersionDefine:     "PERL_VERSION",
			SubversionDefine:  "PERL_SUBVERSION",
			UncommittedMarker: "uncommitted-changes",
		},
		Permissions: PermissionsConfig{
			FileMode: 0o444,
			DirMode:  0o755,
			Writable: slices.Clone(DefaultWritable),
		},
		Transcode: TranscodeConfig{CodePage: "1047"},
		Archive: ArchiveConfig{
			Tar:      tools.Tar,
			SevenZip: tools.SevenZip,
			Gzip:     tools.Gzip,
			Advdef:   tools.Advdef,
			Xz:       tools.Xz,
		},
		Clean: CleanConfig{
			Build:       []string{"make", "distclean"},
			BuildMarker: "Makefile",
			VCS:         []string{"git", "clean", "-dxf"},
		},
		Log: LogConfig{Level: LogLevelInfo},
	}
}

// Validate reports every invalid field. Values coming from files were
// already checked by the CUE schema; this catches environment overrides.
func (c *Config) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	for key, path := range map[string]string{
		"inputs.manifest":     c.Inputs.Manifest,
		"inputs.version_file": c.Inputs.VersionFile,
		"inputs.exec_list":    c.Inputs.ExecList,
	} {
		if err := types.FilesystemPath(path).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if err := c.Permissions.FileMode.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("permissions.file_mode: %w", err))
	}
	if err := c.Permissions.DirMode.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("permissions.dir_mode: %w", err))
	}
	for key, argv := range map[string][]string{
		"archive.tar":      c.Archive.Tar,
		"archive.sevenzip": c.Archive.SevenZip,
		"archive.gzip":     c.Archive.Gzip,
		"archive.advdef":   c.Archive.Advdef,
		"archive.xz":       c.Archive.Xz,
		"clean.build":      c.Clean.Build,
		"clean.vcs":        c.Clean.VCS,
	} {
		if len(argv) == 0 || argv[0] == "" {
			errs = append(errs, fmt.Errorf("%s: command line must not be empty", key))
		}
	}
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		// Map iteration order is random; keep messages stable.
		slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid config: %v", e.FieldErrors[0])
	}
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig followed by the field errors, so both the
// category and the individual causes match errors.Is().
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Validate returns an error if the level is not one of the known levels.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }
