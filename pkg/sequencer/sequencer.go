// Package sequencer runs named steps in order and keeps a ledger of what
// ran, what failed, and what was skipped.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Exit codes reported by Ledger.ExitCode.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// State is the recorded outcome of one step.
type State string

const (
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// Step is one unit of work.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
	// Skip, when set and returning true, records the step as skipped with the reason.
	Skip func() (bool, string)
}

// Entry is one ledger line.
type Entry struct {
	Name     string
	State    State
	Err      error
	Reason   string
	Duration time.Duration
}

// Ledger records a run.
type Ledger struct {
	RunID       string
	Entries     []Entry
	Aborted     bool
	Interrupted bool
}

func (l *Ledger) filter(s State) []Entry {
	var out []Entry
	for _, e := range l.Entries {
		if e.State == s {
			out = append(out, e)
		}
	}
	return out
}

// Ran returns the steps that executed, whatever their result.
func (l *Ledger) Ran() []Entry {
	var out []Entry
	for _, e := range l.Entries {
		if e.State != StateSkipped {
			out = append(out, e)
		}
	}
	return out
}

func (l *Ledger) Succeeded() []Entry { return l.filter(StateSucceeded) }
func (l *Ledger) Failed() []Entry    { return l.filter(StateFailed) }
func (l *Ledger) Skipped() []Entry   { return l.filter(StateSkipped) }

// ExitCode is 0 when nothing failed, 130 when interrupted, 1 otherwise.
func (l *Ledger) ExitCode() int {
	switch {
	case l.Interrupted:
		return ExitInterrupted
	case l.Aborted || len(l.Failed()) > 0:
		return ExitFailure
	default:
		return ExitOK
	}
}

// Err summarizes the run as an error, nil on success.
func (l *Ledger) Err() error {
	switch {
	case l.Interrupted:
		return ErrInterrupted
	case l.Aborted:
		return fmt.Errorf("aborted after %d failed step(s)", len(l.Failed()))
	case len(l.Failed()) > 0:
		return fmt.Errorf("%d step(s) failed", len(l.Failed()))
	}
	return nil
}

// ErrInterrupted marks a run stopped by a signal.
var ErrInterrupted = errors.New("interrupted")

// Prompter asks the operator whether to continue.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Reporter observes step transitions.
type Reporter interface {
	StepStarted(index, total int, name string)
	StepFinished(e Entry)
}

// Sequencer executes steps in order.
type Sequencer struct {
	// Attended allows prompting on failure; unattended runs abort immediately.
	Attended bool
	Prompter Prompter
	Reporter Reporter
}

// Run executes steps and returns the ledger.
func (s *Sequencer) Run(ctx context.Context, steps ...Step) *Ledger {
	ledger := &Ledger{RunID: uuid.New().String()}

	for i, step := range steps {
		if ctx.Err() != nil {
			ledger.Interrupted = true
			s.skipRest(ledger, steps[i:], "interrupted")
			return ledger
		}

		if step.Skip != nil {
			if skip, reason := step.Skip(); skip {
				s.record(ledger, Entry{Name: step.Name, State: StateSkipped, Reason: reason})
				continue
			}
		}

		if s.Reporter != nil {
			s.Reporter.StepStarted(i+1, len(steps), step.Name)
		}

		start := time.Now()
		err := step.Run(ctx)
		entry := Entry{Name: step.Name, State: StateSucceeded, Duration: time.Since(start)}
		if err != nil {
			entry.State = StateFailed
			entry.Err = err
		}
		s.record(ledger, entry)

		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			ledger.Interrupted = true
			s.skipRest(ledger, steps[i+1:], "interrupted")
			return ledger
		}

		if !s.shouldContinue(ctx, step.Name, err) {
			ledger.Aborted = true
			s.skipRest(ledger, steps[i+1:], "aborted")
			return ledger
		}
	}

	return ledger
}

func (s *Sequencer) shouldContinue(ctx context.Context, name string, err error) bool {
	if !s.Attended || s.Prompter == nil {
		return false
	}

	ok, perr := s.Prompter.Confirm(ctx, fmt.Sprintf("Step %q failed: %v. Continue anyway?", name, err))
	if perr != nil {
		return false
	}
	return ok
}

func (s *Sequencer) skipRest(l *Ledger, rest []Step, reason string) {
	for _, st := range rest {
		s.record(l, Entry{Name: st.Name, State: StateSkipped, Reason: reason})
	}
}

func (s *Sequencer) record(l *Ledger, e Entry) {
	l.Entries = append(l.Entries, e)
	if s.Reporter != nil {
		s.Reporter.StepFinished(e)
	}
}
