// SPDX-License-Identifier: MPL-2.0

// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/invowk/makerel/internal/runner"
	"github.com/invowk/makerel/pkg/types"
)

type (
	// Handler simulates one program. It may write to cmd.Stdout and read
	// cmd.Stdin like the real program would.
	Handler func(cmd runner.Command) (*runner.Result, error)

	// Fake records every command and dispatches it to a Handler keyed by
	// program name. Programs without a handler succeed silently; programs
	// listed in Missing fail LookPath and Run.
	Fake struct {
		mu       sync.Mutex
		handlers map[string]Handler
		missing  map[string]bool
		calls    []runner.Command
	}
)

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		handlers: make(map[string]Handler),
		missing:  make(map[string]bool),
	}
}

// Handle installs h for program name.
func (f *Fake) Handle(name string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
	return f
}

// Exit makes program name exit with code and print output.
func (f *Fake) Exit(name string, code types.ExitCode, output string) *Fake {
	return f.Handle(name, func(runner.Command) (*runner.Result, error) {
		return &runner.Result{ExitCode: code, Output: []byte(output)}, nil
	})
}

// Missing marks programs as not installed.
func (f *Fake) Missing(names ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.missing[n] = true
	}
	return f
}

// Run records cmd and dispatches it.
func (f *Fake) Run(_ context.Context, cmd runner.Command) (*runner.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	h, ok := f.handlers[cmd.Name]
	missing := f.missing[cmd.Name]
	f.mu.Unlock()

	if missing {
		return nil, fmt.Errorf("exec: %q: %w", cmd.Name, exec.ErrNotFound)
	}
	if !ok {
		if cmd.Stdin != nil && cmd.Stdout != nil {
			// Behave like cat so pipelines still produce output.
			if _, err := io.Copy(cmd.Stdout, cmd.Stdin); err != nil {
				return nil, err
			}
		}
		return &runner.Result{}, nil
	}
	return h(cmd)
}

// LookPath succeeds for every program not marked missing.
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[name] {
		return "", fmt.Errorf("exec: %q: %w", name, exec.ErrNotFound)
	}
	return "/usr/bin/" + name, nil
}

// Calls returns a copy of the recorded commands.
func (f *Fake) Calls() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]runner.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// Lines returns the recorded commands rendered with Command.String.
func (f *Fake) Lines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// Names returns the program names in call order.
func (f *Fake) Names() []string {
	calls := f.Calls()
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}
