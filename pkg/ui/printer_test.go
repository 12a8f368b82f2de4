package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func init() {
	DisableColor()
}

func TestPrinter_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Info("one %d", 1)
	p.Success("two")
	p.Warning("three")
	p.Error("four")
	p.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "[INFO] one 1\n")
	assert.Contains(t, out, "[SUCCESS] two\n")
	assert.Contains(t, out, "[WARNING] three\n")
	assert.Contains(t, out, "[ERROR] four\n")
	assert.NotContains(t, out, "hidden")
}

func TestPrinter_DebugWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Debug("details")
	assert.Contains(t, buf.String(), "[DEBUG] details")
}

func TestPrinter_Block(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).Block("a\nb\n")
	assert.Equal(t, "    a\n    b\n", buf.String())
}

func TestPrinter_Spin(t *testing.T) {
	tests := []struct {
		name     string
		tty      bool
		verbose  bool
		spinning bool
	}{
		{"pipe", false, false, false},
		{"terminal", true, false, true},
		{"terminal with streamed output", true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(&buf, tt.verbose)
			p.tty = tt.tty
			assert.Equal(t, tt.spinning, p.spinning())

			if tt.spinning {
				return
			}
			err := p.Spin("Installing chart", func() error {
				buf.WriteString("helm output\n")
				return errors.New("boom")
			})
			assert.EqualError(t, err, "boom")
			assert.Equal(t, "[INFO] Installing chart...\nhelm output\n", buf.String())
		})
	}
}
