package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/unkn0wn-root/lrconv/internal/project"
)

type palette struct {
	enabled bool
	title   lipgloss.Style
	label   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
}

// newPalette styles output only when w is a terminal and NO_COLOR is unset.
func newPalette(w io.Writer) palette {
	enabled := false
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		enabled = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		enabled = false
	}
	return palette{
		enabled: enabled,
		title:   lipgloss.NewStyle().Bold(true),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(12),
		ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		bad:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

func (p palette) render(style lipgloss.Style, text string) string {
	if !p.enabled {
		return text
	}
	return style.Render(text)
}

func (p palette) row(label string, value string) string {
	if !p.enabled {
		return fmt.Sprintf("  %-12s%s", label, value)
	}
	return "  " + p.label.Render(label) + value
}

type summary struct {
	Project  string
	Scripts  int
	Output   string
	Servers  int
	Stats    project.Stats
	Warnings int
	Errors   int
}

func printSummary(w io.Writer, s summary) error {
	p := newPalette(w)
	dest := s.Output
	if dest == "" {
		dest = "stdout"
	}
	lines := []string{
		p.render(p.title, fmt.Sprintf("Converted %s (%d scripts) -> %s", s.Project, s.Scripts, dest)),
		p.row("servers", fmt.Sprint(s.Servers)),
		p.row("containers", fmt.Sprint(s.Stats.Containers)),
		p.row("pages", fmt.Sprint(s.Stats.Pages)),
		p.row("requests", fmt.Sprint(s.Stats.Requests)),
		p.row("cookies", fmt.Sprint(s.Stats.Cookies)),
		p.row("warnings", countStyle(p, p.warn, s.Warnings)),
		p.row("errors", countStyle(p, p.bad, s.Errors)),
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

func countStyle(p palette, style lipgloss.Style, n int) string {
	if n == 0 {
		return p.render(p.ok, "0")
	}
	return p.render(style, fmt.Sprint(n))
}
