package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	ColorUser   = lipgloss.Color("#87d7af") // Soft Green
	ColorAI     = lipgloss.Color("#87afff") // Soft Blue
	ColorSystem = lipgloss.Color("#767676") // Grey
	ColorError  = lipgloss.Color("#ff5f5f") // Soft Red
	ColorHeader = lipgloss.Color("#bd93f9") // Purple
	ColorBorder = lipgloss.Color("#444444") // Dark Grey
)

// styles is built per model so tests and non-color terminals can use a
// plain renderer.
type styles struct {
	header    lipgloss.Style
	footer    lipgloss.Style
	input     lipgloss.Style
	preview   lipgloss.Style
	userLabel lipgloss.Style
	aiLabel   lipgloss.Style
	system    lipgloss.Style
	err       lipgloss.Style
	body      lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().
			Foreground(ColorHeader).
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(ColorBorder).
			BorderBottom(true),
		footer: r.NewStyle().
			Foreground(ColorSystem).
			Faint(true),
		input: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAI).
			Padding(0, 1),
		preview: r.NewStyle().
			Foreground(ColorSystem).
			Padding(0, 1),
		userLabel: r.NewStyle().
			Foreground(ColorUser).
			Bold(true).
			MarginRight(1),
		aiLabel: r.NewStyle().
			Foreground(ColorAI).
			Bold(true).
			MarginRight(1),
		system: r.NewStyle().
			Foreground(ColorSystem),
		err: r.NewStyle().
			Foreground(ColorError),
		body: r.NewStyle().
			PaddingLeft(1),
	}
}
