// Package terminal implements sink.Sink for interactive terminals,
// grounded on BeadsLog's internal/ui lipgloss styling conventions and
// on fmt.py's Rich-based rendering (tool lines prefixed with a ✓/✗
// glyph, markdown-rendered assistant text and prompt echoes, dim
// styling for incidental info lines).
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/untoldecay/inshallah/internal/sink"
)

var (
	styleGreen   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleRed     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleMagenta = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	styleBlue    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleYellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleCyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleDim     = lipgloss.NewStyle().Faint(true)
	styleBold    = lipgloss.NewStyle().Bold(true)
)

// toolStyles mirrors fmt.py's _TOOL_STYLES category table.
var toolStyles = map[string]lipgloss.Style{
	"edit": styleMagenta, "write": styleMagenta,
	"read": styleBlue, "glob": styleBlue, "grep": styleBlue, "search": styleBlue,
	"bash": styleYellow,
	"task": styleCyan,
}

// Sink renders to an io.Writer (typically os.Stdout), tracking whether
// a live text delta is currently open so Tool/Error/Line calls can
// close it first — mirroring fmt.py's _close_live_delta discipline.
type Sink struct {
	out           io.Writer
	renderer      *glamour.TermRenderer
	liveDeltaOpen bool
}

// New returns a terminal Sink writing to out. Markdown rendering falls
// back to plain text if glamour's renderer cannot be constructed.
func New(out io.Writer) *Sink {
	renderer, _ := glamour.NewTermRenderer(glamour.WithAutoStyle())
	return &Sink{out: out, renderer: renderer}
}

// NewStdout returns a terminal Sink writing to os.Stdout.
func NewStdout() *Sink { return New(os.Stdout) }

func (s *Sink) closeLiveDelta() {
	if s.liveDeltaOpen {
		fmt.Fprintln(s.out)
		s.liveDeltaOpen = false
	}
}

func (s *Sink) renderMarkdown(text string) string {
	if s.renderer == nil {
		return text
	}
	out, err := s.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func (s *Sink) Panel(title, body, style string) {
	s.closeLiveDelta()
	fmt.Fprintln(s.out, styleBold.Render(title))
	fmt.Fprintln(s.out, s.renderMarkdown(body))
}

func (s *Sink) Line(text, style string) {
	s.closeLiveDelta()
	fmt.Fprintln(s.out, styleFor(style).Render(text))
}

func (s *Sink) Table(title string, rows [][]string) {
	s.closeLiveDelta()
	if title != "" {
		fmt.Fprintln(s.out, styleBold.Render(title))
	}
	t := table.New().Border(lipgloss.RoundedBorder())
	for _, row := range rows {
		t = t.Row(row...)
	}
	fmt.Fprintln(s.out, t.Render())
}

func (s *Sink) Tool(name, detail string, ok bool) {
	s.closeLiveDelta()
	glyph, glyphStyle := "✓", styleGreen
	if !ok {
		glyph, glyphStyle = "✗", styleRed
	}
	nameStyle, known := toolStyles[name]
	if !known {
		nameStyle = styleDim
	}
	if !ok {
		nameStyle = styleRed
	}
	line := "  " + glyphStyle.Render(glyph) + " " + nameStyle.Bold(true).Render(name)
	if detail != "" {
		detailStyle := styleDim
		if !ok {
			detailStyle = styleRed
		}
		line += " " + detailStyle.Render(detail)
	}
	fmt.Fprintln(s.out, line)
}

func (s *Sink) Text(chunk string, delta bool) {
	if chunk == "" {
		return
	}
	if delta {
		if !s.liveDeltaOpen {
			fmt.Fprintln(s.out)
			fmt.Fprint(s.out, styleGreen.Bold(true).Render("  agent ")+" ")
			s.liveDeltaOpen = true
		}
		fmt.Fprint(s.out, chunk)
		return
	}
	s.closeLiveDelta()
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, styleGreen.Bold(true).Render("agent"))
	fmt.Fprintln(s.out, s.renderMarkdown(strings.TrimSpace(chunk)))
}

func (s *Sink) Stats(kv []sink.Stat) {
	if len(kv) == 0 {
		return
	}
	parts := make([]string, 0, len(kv))
	for _, stat := range kv {
		parts = append(parts, stat.Key+"="+stat.Value)
	}
	s.closeLiveDelta()
	fmt.Fprintln(s.out, styleDim.Render("  stats "+strings.Join(parts, " ")))
}

func (s *Sink) Error(msg string) {
	s.closeLiveDelta()
	fmt.Fprintln(s.out, styleRed.Render("  error: "+msg))
}

func styleFor(name string) lipgloss.Style {
	switch name {
	case "red":
		return styleRed
	case "green":
		return styleGreen
	case "yellow":
		return styleYellow
	case "cyan":
		return styleCyan
	case "magenta":
		return styleMagenta
	case "blue":
		return styleBlue
	case "bold":
		return styleBold
	default:
		return styleDim
	}
}
