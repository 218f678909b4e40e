package ui

import (
	"io"
	"strings"

	"github.com/fatih/color"
)

// Diagnostics prints verbose dispatch output to standard error.
type Diagnostics struct {
	w io.Writer
}

// NewDiagnostics creates a diagnostics sink writing to w, or to ErrOut when
// w is nil.
func NewDiagnostics(w io.Writer) *Diagnostics {
	if w == nil {
		w = ErrOut
	}
	return &Diagnostics{w: w}
}

// SystemPrompt prints the exact system prompt sent to model.
func (d *Diagnostics) SystemPrompt(model, text string) {
	d.block("System prompt for "+model, text)
}

// RawResponse prints the unprocessed reply from model.
func (d *Diagnostics) RawResponse(model, text string) {
	d.block("Raw response from "+model, text)
}

func (d *Diagnostics) block(title, text string) {
	header := color.New(color.FgMagenta, color.Bold)
	header.Fprintf(d.w, "=== %s ===\n", title)
	io.WriteString(d.w, text)
	if !strings.HasSuffix(text, "\n") {
		io.WriteString(d.w, "\n")
	}
	header.Fprintln(d.w, "=== end ===")
}
