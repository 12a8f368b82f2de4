// Package ui provides the prefixed, colored console output used by every command.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// Printer writes [INFO]/[SUCCESS]/[WARNING]/[ERROR] lines to a writer.
type Printer struct {
	out     io.Writer
	verbose bool
	tty     bool

	info    *color.Color
	success *color.Color
	warning *color.Color
	errc    *color.Color
	header  *color.Color
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, verbose bool) *Printer {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}

	return &Printer{
		out:     out,
		verbose: verbose,
		tty:     tty,
		info:    color.New(color.FgBlue, color.Bold),
		success: color.New(color.FgGreen, color.Bold),
		warning: color.New(color.FgYellow, color.Bold),
		errc:    color.New(color.FgRed, color.Bold),
		header:  color.New(color.FgCyan, color.Bold),
	}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Verbose reports whether debug lines are printed.
func (p *Printer) Verbose() bool {
	return p.verbose
}

func (p *Printer) line(c *color.Color, prefix, format string, args ...any) {
	c.Fprint(p.out, prefix)
	fmt.Fprintf(p.out, " "+format+"\n", args...)
}

func (p *Printer) Info(format string, args ...any) {
	p.line(p.info, "[INFO]", format, args...)
}

func (p *Printer) Success(format string, args ...any) {
	p.line(p.success, "[SUCCESS]", format, args...)
}

func (p *Printer) Warning(format string, args ...any) {
	p.line(p.warning, "[WARNING]", format, args...)
}

func (p *Printer) Error(format string, args ...any) {
	p.line(p.errc, "[ERROR]", format, args...)
}

// Debug prints only in verbose mode.
func (p *Printer) Debug(format string, args ...any) {
	if !p.verbose {
		return
	}
	p.line(color.New(color.Faint), "[DEBUG]", format, args...)
}

// Header prints a section banner.
func (p *Printer) Header(title string) {
	bar := strings.Repeat("═", 67)
	fmt.Fprintln(p.out)
	p.header.Fprintln(p.out, bar)
	p.header.Fprintf(p.out, "  %s\n", title)
	p.header.Fprintln(p.out, bar)
}

// Block prints multi-line diagnostic output indented under the current line.
func (p *Printer) Block(text string) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(p.out, "    %s\n", l)
	}
}

// Spin runs fn while showing a spinner on terminals. Non-terminal output
// gets a single [INFO] line instead, and so does verbose mode, where external
// commands stream into the same writer.
func (p *Printer) Spin(message string, fn func() error) error {
	if !p.spinning() {
		p.Info("%s...", message)
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(p.out))
	s.Suffix = " " + message + "..."
	s.Start()
	err := fn()
	s.Stop()

	return err
}

func (p *Printer) spinning() bool {
	return p.tty && !p.verbose
}

// DisableColor turns off ANSI colors for all printers.
func DisableColor() {
	color.NoColor = true
}
