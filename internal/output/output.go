// Package output provides consistent CLI output for the courseindex commands.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
	ok       lipgloss.Style
	warn     lipgloss.Style
	fail     lipgloss.Style
	label    lipgloss.Style
}

// New creates a Writer. Color is used only when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	_, noColor := os.LookupEnv("NO_COLOR")
	return newWriter(out, isTerminal(out) && !noColor)
}

func newWriter(out io.Writer, useColor bool) *Writer {
	plain := lipgloss.NewStyle()
	w := &Writer{out: out, useColor: useColor, ok: plain, warn: plain, fail: plain, label: plain}
	if useColor {
		w.ok = lipgloss.NewStyle().Foreground(lipgloss.Color("37"))
		w.warn = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
		w.fail = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		w.label = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	}
	return w
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.ok.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.warn.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.fail.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Field prints an indented "label: value" line.
func (w *Writer) Field(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "   %s %v\n", w.label.Render(label+":"), value)
}

// Code prints a block with indentation.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// List prints items as an indented bullet list, at most limit of them.
// A limit of zero prints everything.
func (w *Writer) List(items []string, limit int) {
	shown := items
	if limit > 0 && len(items) > limit {
		shown = items[:limit]
	}
	for _, item := range shown {
		_, _ = fmt.Fprintf(w.out, "   - %s\n", item)
	}
	if rest := len(items) - len(shown); rest > 0 {
		_, _ = fmt.Fprintf(w.out, "   ... and %d more\n", rest)
	}
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
