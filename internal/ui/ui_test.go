package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestColorEnabled_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	if ColorEnabled(&bytes.Buffer{}) {
		t.Error("ColorEnabled should be false with NO_COLOR set")
	}
}

func TestColorEnabled_NotAFile(t *testing.T) {
	if ColorEnabled(&bytes.Buffer{}) {
		t.Error("ColorEnabled should be false for a buffer")
	}
}

func TestRender_Plain(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	if got := RenderPass("OK"); got != "OK" {
		t.Errorf("RenderPass = %q, want plain text", got)
	}
}

func TestTable(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	out := Table([]string{"BRANCH", "HOST"}, [][]string{
		{"12", "ftp.downtown"},
		{"140", "ftp.east"},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	// Columns line up: HOST starts at the same offset on every row.
	col := strings.Index(lines[0], "HOST")
	for _, l := range lines[1:] {
		if idx := strings.Index(l, "ftp."); idx != col {
			t.Errorf("column misaligned in %q: %d != %d", l, idx, col)
		}
	}
}
