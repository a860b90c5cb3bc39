// Package render turns model replies into terminal output.
package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const fallbackWidth = 80

// Renderer formats a complete reply for display.
type Renderer interface {
	Render(text string) (string, error)
}

// Plain returns text unchanged.
type Plain struct{}

func (Plain) Render(text string) (string, error) { return text, nil }

// Markdown renders replies as styled terminal markdown.
type Markdown struct {
	r *glamour.TermRenderer
}

// NewMarkdown creates a Markdown renderer wrapping at width. An empty style
// picks a dark or light theme from the terminal background.
func NewMarkdown(width int, style string) (*Markdown, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return &Markdown{r: r}, nil
}

func (m *Markdown) Render(text string) (string, error) {
	out, err := m.r.Render(text)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}

// New returns a Markdown renderer sized to stdout when markdown is set, and
// Plain otherwise.
func New(markdown bool) (Renderer, error) {
	if !markdown {
		return Plain{}, nil
	}
	return NewMarkdown(TermWidth(os.Stdout), "")
}

// TermWidth returns the column count of f, or 80 when f is not a terminal.
func TermWidth(f *os.File) int {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return fallbackWidth
	}
	return width
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
