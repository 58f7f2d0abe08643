// Package ui styles CLI output. Styling is dropped when NO_COLOR is set or
// stdout is not a terminal.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	accent = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	pass   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warn   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	fail   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	muted  = lipgloss.NewStyle().Faint(true)
)

func init() {
	if !ColorEnabled(os.Stdout) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// ColorEnabled reports whether styled output should be written to w.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// IsInteractive reports whether stdin is a terminal that can be prompted.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Render helpers apply the shared styles.
func RenderAccent(s string) string { return accent.Render(s) }
func RenderPass(s string) string { return pass.Render(s) }
func RenderWarn(s string) string { return warn.Render(s) }
func RenderFail(s string) string { return fail.Render(s) }
func RenderMuted(s string) string { return muted.Render(s) }

// Table renders rows as left-aligned columns with a styled header row.
func Table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	cellStyle := func(i int) lipgloss.Style {
		return lipgloss.NewStyle().Width(widths[i] + 2)
	}

	var out string
	line := make([]string, len(header))
	for i, h := range header {
		line[i] = cellStyle(i).Inherit(accent).Render(h)
	}
	out += lipgloss.JoinHorizontal(lipgloss.Top, line...) + "\n"

	for _, row := range rows {
		line = line[:0]
		for i := range header {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			line = append(line, cellStyle(i).Render(cell))
		}
		out += lipgloss.JoinHorizontal(lipgloss.Top, line...) + "\n"
	}
	return out
}

// Errorf prints a styled error line to stderr.
func Errorf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, RenderFail("Error: ")+fmt.Sprintf(format, args...))
}
