package markup

import (
	"io"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

var (
	colorHeading = lipgloss.Color("#bd93f9")
	colorMath    = lipgloss.Color("#87d7ff")
	colorError   = lipgloss.Color("#ff5f5f")
)

// TerminalFormatter writes units for a terminal. Escape sequences and other
// control characters in message text are removed before styling.
type TerminalFormatter struct {
	width int

	headings [3]lipgloss.Style
	bold     lipgloss.Style
	italic   lipgloss.Style
	inline   lipgloss.Style
	display  lipgloss.Style
	fallback lipgloss.Style
}

// NewTerminalFormatter returns a formatter centering display math within
// width columns. termenv.Ascii disables all styling.
func NewTerminalFormatter(width int, profile termenv.Profile) *TerminalFormatter {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(profile)
	r.SetHasDarkBackground(true)

	if width <= 0 {
		width = 80
	}

	return &TerminalFormatter{
		width: width,
		headings: [3]lipgloss.Style{
			r.NewStyle().Foreground(colorHeading).Bold(true).Underline(true),
			r.NewStyle().Foreground(colorHeading).Bold(true),
			r.NewStyle().Foreground(colorHeading),
		},
		bold:     r.NewStyle().Bold(true),
		italic:   r.NewStyle().Italic(true),
		inline:   r.NewStyle().Foreground(colorMath),
		display:  r.NewStyle().Foreground(colorMath).Width(width).Align(lipgloss.Center),
		fallback: r.NewStyle().Foreground(colorError).Underline(true),
	}
}

// Width returns the column width display math is centered in.
func (t *TerminalFormatter) Width() int {
	return t.width
}

// Format implements Formatter.
func (t *TerminalFormatter) Format(units []Unit) string {
	var b strings.Builder
	for i, u := range units {
		text := sanitize(u.Text)

		if u.Fallback {
			b.WriteString(t.fallback.Render(text))
			continue
		}

		switch u.Fragment.Kind {
		case Heading:
			level := u.Fragment.Level
			if level < 1 || level > 3 {
				level = 3
			}
			b.WriteString(t.headings[level-1].Render(text))
		case Bold:
			b.WriteString(t.bold.Render(text))
		case Italic:
			b.WriteString(t.italic.Render(text))
		case InlineMath:
			b.WriteString(t.inline.Render(text))
		case DisplayMath:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte('\n')
			}
			b.WriteString(t.display.Render(text))
			if i+1 < len(units) && !strings.HasPrefix(units[i+1].Text, "\n") {
				b.WriteByte('\n')
			}
		default:
			b.WriteString(text)
		}
	}
	return b.String()
}

// sanitize strips terminal escape sequences and control characters other
// than newline and tab.
func sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
