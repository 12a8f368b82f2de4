// Package tools drives the kind and helm command line tools.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

var (
	// ErrCommandExecution wraps a non-zero exit or a failed start.
	ErrCommandExecution = errors.New("run")

	// ErrEmptyCommand is returned when no command name is given.
	ErrEmptyCommand = errors.New("empty command")
)

// Result holds the captured output of a command.
type Result struct {
	Stdout string
	Stderr string
}

// Runner executes an external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Env replaces the child environment when non-nil.
	Env []string
	// Stream, when set, also receives stdout and stderr as they are written.
	Stream io.Writer
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if name == "" {
		return Result{}, ErrEmptyCommand
	}

	//nolint:gosec // G204: arguments come from configuration, not user input.
	cmd := exec.CommandContext(ctx, name, args...)
	if r.Env != nil {
		cmd.Env = r.Env
	}

	var stdout, stderr bytes.Buffer
	if r.Stream != nil {
		cmd.Stdout = io.MultiWriter(&stdout, r.Stream)
		cmd.Stderr = io.MultiWriter(&stderr, r.Stream)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if msg := strings.TrimSpace(result.Stderr); msg != "" {
			return result, fmt.Errorf("%w %s: %w: %s", ErrCommandExecution, name, err, msg)
		}
		return result, fmt.Errorf("%w %s: %w", ErrCommandExecution, name, err)
	}

	return result, nil
}

// DryRunner prints each command line instead of running it.
type DryRunner struct {
	Out io.Writer
}

// Run implements Runner.
func (r DryRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	if name == "" {
		return Result{}, ErrEmptyCommand
	}
	fmt.Fprintf(r.Out, "$ %s\n", CommandLine(name, args...))
	return Result{}, nil
}

// CommandLine renders a command for display, quoting arguments with spaces.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
