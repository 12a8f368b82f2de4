// Package prereq verifies that required binaries are installed and that the
// services a command talks to are reachable before any work starts.
package prereq

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Status is the tri-state outcome of a probe.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusUnknown Status = "unknown"
)

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 10 * time.Second

// ProbeResult is what a probe observed. Probes never return errors.
type ProbeResult struct {
	Status Status
	Detail string
}

func Success(detail string) ProbeResult { return ProbeResult{Status: StatusSuccess, Detail: detail} }
func Failure(detail string) ProbeResult { return ProbeResult{Status: StatusFailure, Detail: detail} }
func Unknown(detail string) ProbeResult { return ProbeResult{Status: StatusUnknown, Detail: detail} }

// Probe is a named reachability check.
type Probe struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// WithTimeout bounds p to d. A probe that does not answer in time is unknown.
func WithTimeout(d time.Duration, p Probe) Probe {
	return Probe{
		Name: p.Name,
		Run: func(ctx context.Context) ProbeResult {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			done := make(chan ProbeResult, 1)
			go func() { done <- p.Run(ctx) }()

			select {
			case r := <-done:
				return r
			case <-ctx.Done():
				return Unknown(fmt.Sprintf("no answer within %s", d))
			}
		},
	}
}

// MissingDependencyError names the first required command not found on PATH.
type MissingDependencyError struct {
	Name string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("required command %q not found in PATH", e.Name)
}

// ProbeFailedError names the first probe that did not succeed.
type ProbeFailedError struct {
	Probe  string
	Result ProbeResult
}

func (e *ProbeFailedError) Error() string {
	return fmt.Sprintf("%s check %s: %s", e.Probe, e.Result.Status, e.Result.Detail)
}

// Checker verifies commands and probes, failing fast on the first problem.
type Checker struct {
	Commands []string
	Probes   []Probe

	// LookPath resolves commands; exec.LookPath when nil.
	LookPath func(string) (string, error)
	// OnPass is called for each dependency that was found.
	OnPass func(name, detail string)
}

// Check returns nil only when every command resolves and every probe succeeds.
func (c *Checker) Check(ctx context.Context) error {
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	for _, name := range c.Commands {
		path, err := lookPath(name)
		if err != nil {
			return &MissingDependencyError{Name: name}
		}
		c.pass(name, path)
	}

	for _, p := range c.Probes {
		r := p.Run(ctx)
		if r.Status != StatusSuccess {
			return &ProbeFailedError{Probe: p.Name, Result: r}
		}
		c.pass(p.Name, r.Detail)
	}

	return nil
}

func (c *Checker) pass(name, detail string) {
	if c.OnPass != nil {
		c.OnPass(name, detail)
	}
}
