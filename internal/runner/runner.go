// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"

	"github.com/invowk/makerel/internal/issue"
	"github.com/invowk/makerel/pkg/types"
)

type (
	// Command describes one child process invocation.
	Command struct {
		// Name is the program, resolved through PATH.
		Name string
		Args []string
		// Dir is the working directory; empty means the current one.
		Dir   string
		Stdin io.Reader
		// Stdout receives standard output. When nil, standard output is
		// captured into Result.Output together with standard error.
		Stdout io.Writer
	}

	// Result is the outcome of a process that ran to completion.
	Result struct {
		ExitCode types.ExitCode
		// Output holds captured stderr, plus stdout when Command.Stdout was nil.
		Output []byte
	}

	// Runner starts child processes and waits for them.
	Runner interface {
		// Run blocks until the process exits. A non-zero exit is reported in
		// Result, not as an error; err is reserved for processes that could
		// not be started or waited on.
		Run(ctx context.Context, cmd Command) (*Result, error)
		// LookPath reports where name would be found, like exec.LookPath.
		LookPath(name string) (string, error)
	}

	// Exec runs commands with os/exec.
	Exec struct {
		logger *log.Logger
	}
)

// NewExec creates an os/exec backed Runner. logger may be nil.
func NewExec(logger *log.Logger) *Exec {
	return &Exec{logger: logger}
}

// Run executes the command and waits for it to finish.
func (e *Exec) Run(ctx context.Context, c Command) (*Result, error) {
	if e.logger != nil {
		e.logger.Debug("exec", "cmd", c.String(), "dir", c.Dir)
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin

	var captured bytes.Buffer
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	} else {
		cmd.Stdout = &captured
	}
	cmd.Stderr = &captured

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Result{ExitCode: types.ExitCode(exitErr.ExitCode()), Output: captured.Bytes()}, nil
		}
		return nil, fmt.Errorf("failed to execute %s: %w", c.Name, err)
	}

	return &Result{Output: captured.Bytes()}, nil
}

// LookPath resolves name through PATH.
func (e *Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// String renders the command as a shell-quoted command line, including
// redirections implied by file-backed Stdin and Stdout.
func (c Command) String() string {
	words := make([]string, 0, len(c.Args)+1)
	words = append(words, quote(c.Name))
	for _, arg := range c.Args {
		words = append(words, quote(arg))
	}
	line := strings.Join(words, " ")
	if n, ok := c.Stdin.(interface{ Name() string }); ok {
		line += " < " + quote(n.Name())
	}
	if n, ok := c.Stdout.(interface{ Name() string }); ok {
		line += " > " + quote(n.Name())
	}
	return line
}

func quote(word string) string {
	q, err := syntax.Quote(word, syntax.LangPOSIX)
	if err != nil {
		return strconv.Quote(word)
	}
	return q
}

// Check runs the command and converts a start failure or non-zero exit into
// an *issue.ExternalToolError carrying the command line.
func Check(ctx context.Context, r Runner, c Command) (*Result, error) {
	res, err := r.Run(ctx, c)
	if err != nil {
		return nil, issue.NewExternalToolError(c.String(), types.ExitFailure, nil, err)
	}
	if !res.ExitCode.IsSuccess() {
		return res, issue.NewExternalToolError(c.String(), res.ExitCode, res.Output, nil)
	}
	return res, nil
}

// Available reports whether name can be started.
func Available(r Runner, name string) bool {
	_, err := r.LookPath(name)
	return err == nil
}
