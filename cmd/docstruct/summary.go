package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// titleStyle for bold headers
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	// dimStyle for labels
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// boxStyle for the run summary
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
)

type field struct {
	label string
	value string
}

// summary is the boxed report printed after a command.
type summary struct {
	title    string
	fields   []field
	warnings []string
}

func (s *summary) add(label string, value any) {
	s.fields = append(s.fields, field{label: label, value: fmt.Sprint(value)})
}

func (s *summary) warn(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

// print renders the summary box to w.
func (s *summary) print(w io.Writer) {
	width := 0
	for _, f := range s.fields {
		width = max(width, len(f.label))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(s.title))
	for _, f := range s.fields {
		label := dimStyle.Render(fmt.Sprintf("%-*s", width+1, f.label+":"))
		fmt.Fprintf(&b, "\n%s %s", label, f.value)
	}
	if len(s.warnings) == 0 {
		b.WriteString("\n" + successStyle.Render("✓ done"))
	}
	for _, msg := range s.warnings {
		b.WriteString("\n" + warnStyle.Render("! "+msg))
	}
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}
