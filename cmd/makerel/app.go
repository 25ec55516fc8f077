// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/invowk/makerel/internal/config"
	"github.com/invowk/makerel/internal/platform"
	"github.com/invowk/makerel/internal/runner"
	"github.com/invowk/makerel/pkg/types"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and delegates to the internal packages through it.
	App struct {
		Config  ConfigProvider
		Runner  runner.Runner
		Charset func() platform.Charset
		// WorkDir is the source root; empty means the working directory.
		WorkDir string
		stdout  io.Writer
		stderr  io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config  ConfigProvider
		Runner  runner.Runner
		Charset func() platform.Charset
		WorkDir string
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Charset == nil {
		deps.Charset = platform.NativeCharset
	}
	return &App{
		Config:  deps.Config,
		Runner:  deps.Runner,
		Charset: deps.Charset,
		WorkDir: deps.WorkDir,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
	}
}

// loadConfig reads the configuration, honoring an explicit --config path.
func (a *App) loadConfig(ctx context.Context, path string) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: types.FilesystemPath(path),
		BaseDir:        types.FilesystemPath(a.WorkDir),
	})
}

// newLogger builds the stderr logger. --verbose wins over log.level.
func (a *App) newLogger(cfg *config.Config, verbose bool) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName})
	level := log.InfoLevel
	if cfg != nil {
		if l, err := log.ParseLevel(cfg.Log.Level.String()); err == nil {
			level = l
		}
	}
	if verbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

// newRunner returns the configured Runner, creating an os/exec one on demand.
func (a *App) newRunner(logger *log.Logger) runner.Runner {
	if a.Runner != nil {
		return a.Runner
	}
	return runner.NewExec(logger)
}
