package sequencer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// TerminalPrompter asks a y/N question on in/out. A single goroutine reads
// In for the prompter's lifetime, so a line typed after a canceled question
// answers the next one.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer

	once  sync.Once
	lines chan answer
}

type answer struct {
	line string
	err  error
}

func (p *TerminalPrompter) readLines() {
	p.lines = make(chan answer)
	go func() {
		defer close(p.lines)
		r := bufio.NewReader(p.In)
		for {
			line, err := r.ReadString('\n')
			p.lines <- answer{line, err}
			if err != nil {
				return
			}
		}
	}()
}

func (p *TerminalPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	p.once.Do(p.readLines)

	fmt.Fprintf(p.Out, "%s [y/N]: ", question)

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.Out)
		return false, ctx.Err()
	case a, ok := <-p.lines:
		if !ok {
			return false, io.EOF
		}
		if a.err != nil && a.line == "" {
			return false, a.err
		}
		resp := strings.ToLower(strings.TrimSpace(a.line))
		return resp == "y" || resp == "yes", nil
	}
}

// StaticPrompter replays canned answers, then answers Default.
type StaticPrompter struct {
	Answers []bool
	Default bool

	Questions []string
}

func (p *StaticPrompter) Confirm(_ context.Context, question string) (bool, error) {
	p.Questions = append(p.Questions, question)
	if len(p.Answers) == 0 {
		return p.Default, nil
	}
	a := p.Answers[0]
	p.Answers = p.Answers[1:]
	return a, nil
}
