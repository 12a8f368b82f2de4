package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chalkan3/pko-demo/pkg/kube"
	"github.com/chalkan3/pko-demo/pkg/monitor"
	"github.com/chalkan3/pko-demo/pkg/prereq"
	"github.com/chalkan3/pko-demo/pkg/sequencer"
	"github.com/chalkan3/pko-demo/pkg/ui"
)

// stepReporter prints step transitions.
type stepReporter struct {
	p *ui.Printer
}

func (r stepReporter) StepStarted(index, total int, name string) {
	r.p.Info("[%d/%d] %s", index, total, name)
}

func (r stepReporter) StepFinished(e sequencer.Entry) {
	switch e.State {
	case sequencer.StateSucceeded:
		r.p.Success("%s (%s)", e.Name, e.Duration.Round(time.Millisecond))
	case sequencer.StateFailed:
		r.p.Error("%s: %v", e.Name, e.Err)
	case sequencer.StateSkipped:
		r.p.Debug("%s skipped: %s", e.Name, e.Reason)
	}
}

func newSequencer() *sequencer.Sequencer {
	return &sequencer.Sequencer{
		Attended: attended(),
		Prompter: newPrompter(),
		Reporter: stepReporter{p: printer},
	}
}

var (
	promptOnce sync.Once
	prompter   *sequencer.TerminalPrompter
)

// newPrompter returns the process-wide stdin prompter.
func newPrompter() sequencer.Prompter {
	promptOnce.Do(func() {
		prompter = &sequencer.TerminalPrompter{In: os.Stdin, Out: printer.Writer()}
	})
	return prompter
}

// confirm asks when attended, otherwise returns def.
func confirm(ctx context.Context, question string, def bool) bool {
	if !attended() {
		return def
	}
	ok, err := newPrompter().Confirm(ctx, question)
	return err == nil && ok
}

func checkPrerequisites(ctx context.Context, commands []string, probes ...prereq.Probe) error {
	checker := &prereq.Checker{
		Commands: commands,
		Probes:   probes,
		OnPass: func(name, detail string) {
			printer.Debug("  ✓ %s: %s", name, detail)
		},
	}
	return checker.Check(ctx)
}

// summary collects what a command did and did not get done.
type summary struct {
	title   string
	done    []string
	notDone []string
}

func (s *summary) ok(format string, args ...any) {
	s.done = append(s.done, fmt.Sprintf(format, args...))
}

func (s *summary) missed(format string, args ...any) {
	s.notDone = append(s.notDone, fmt.Sprintf(format, args...))
}

func printSummary(p *ui.Printer, s *summary, l *sequencer.Ledger) {
	p.Header(s.title)
	p.Info("Run ID: %s", l.RunID)

	for _, e := range l.Entries {
		line := fmt.Sprintf("%-26s %s", e.Name, e.State)
		switch e.State {
		case sequencer.StateSucceeded:
			p.Success("%s", line)
		case sequencer.StateFailed:
			p.Error("%s: %v", line, e.Err)
		default:
			p.Warning("%s (%s)", line, e.Reason)
		}
	}

	if len(s.done) > 0 {
		p.Info("Done:")
		p.Block("• " + strings.Join(s.done, "\n• "))
	}
	if len(s.notDone) > 0 {
		p.Warning("Not done:")
		p.Block("• " + strings.Join(s.notDone, "\n• "))
	}
}

func pollConfig(interval, timeout time.Duration, success, failure []string) monitor.Config {
	return monitor.Config{
		Interval: interval,
		Timeout:  timeout,
		Success:  success,
		Failure:  failure,
		OnPoll: func(p monitor.Poll) {
			if p.Err != nil {
				printer.Debug("  attempt %d: %v", p.Attempt, p.Err)
				return
			}
			printer.Info("  status: %s (%s elapsed)", p.Status, p.Elapsed.Round(time.Second))
		},
	}
}

// dumpDiagnostics prints describe output for a failed Stack.
func dumpDiagnostics(client *kube.Client, namespace, name string) {
	out, err := client.Describe(namespace, kube.KindStack, name)
	if err != nil {
		printer.Warning("Could not describe stack: %v", err)
		return
	}
	printer.Block(out)
}

func describeHint(namespace, name string) string {
	return fmt.Sprintf("pko-demo kubectl describe stack %s -n %s", name, namespace)
}
