// Package ui renders the interactive prompt and the startup banner.
// Styling is only applied on a terminal; piped output stays plain so test
// drivers see exact bytes.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))

// RenderPrompt returns the prompt text, styled when w is a terminal.
func RenderPrompt(w io.Writer, text string) string {
	if !isTerminal(w) {
		return text
	}
	return promptStyle.Render(text)
}

// PrintBanner writes the one-line startup banner.
func PrintBanner(w io.Writer, versionInfo string) {
	if !isTerminal(w) {
		return
	}
	banner := color.New(color.FgCyan, color.Bold)
	_, _ = banner.Fprintln(w, versionInfo)
	_, _ = fmt.Fprintln(w, "Type 'quit' to exit. Builtins: quit, jobs, bg, fg.")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
