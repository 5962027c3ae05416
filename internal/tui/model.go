// Package tui is the full-screen chat interface.
package tui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/ZaguanLabs/mathgpt/internal/chat"
	"github.com/ZaguanLabs/mathgpt/internal/conversation"
	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
	"github.com/ZaguanLabs/mathgpt/internal/markup"
	"github.com/ZaguanLabs/mathgpt/internal/palette"
	"github.com/ZaguanLabs/mathgpt/internal/validation"
)

const helpMarkdown = `# Commands

- ` + "`/help`" + ` show this help
- ` + "`/clear`" + ` delete the saved conversation
- ` + "`/export [dir]`" + ` save the conversation as a text file
- ` + "`/prompt <n>`" + ` use a suggested question
- ` + "`/symbols`" + ` list math symbols
- ` + "`/sym <name>`" + ` insert a math symbol; ` + "`area = /sym pi`" + ` appends it to text
- ` + "`/exit`" + ` quit

Write math between ` + "`$...$`" + ` or ` + "`$$...$$`" + `. A preview appears
under the input while you type math.
`

// Options configures the TUI.
type Options struct {
	ProductName     string
	Version         string
	Prompts         []string
	ShowTimestamps  bool
	TimestampLayout string
	ExportDir       string
	// Profile selects the color profile; termenv.Ascii disables styling.
	Profile termenv.Profile
	Timeout time.Duration
	Now     func() time.Time
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctrl     *chat.Controller
	renderer *markup.Renderer
	pipeline *markup.Pipeline
	opts     Options
	styles   styles

	viewport  viewport.Model
	textinput textinput.Model
	spinner   spinner.Model
	help      *glamour.TermRenderer

	// Chat State
	waiting bool
	notice  string
	err     error

	// Dimensions
	width  int
	height int
}

// NewModel initializes the TUI model.
func NewModel(ctrl *chat.Controller, renderer *markup.Renderer, opts Options) Model {
	if opts.ProductName == "" {
		opts.ProductName = "MathGPT"
	}
	if opts.TimestampLayout == "" {
		opts.TimestampLayout = "15:04"
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	lr := lipgloss.NewRenderer(io.Discard)
	lr.SetColorProfile(opts.Profile)
	lr.SetHasDarkBackground(true)

	ti := textinput.New()
	ti.Placeholder = "Ask a math question... use $...$ for math"
	ti.Focus()
	ti.CharLimit = validation.MaxMessageLength

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	vp := viewport.New(80, 20)

	m := Model{
		ctrl:      ctrl,
		renderer:  renderer,
		opts:      opts,
		styles:    newStyles(lr),
		viewport:  vp,
		textinput: ti,
		spinner:   sp,
		width:     80,
		height:    24,
	}
	m.pipeline = m.newPipeline(80)
	m.refresh()
	return m
}

func (m Model) newPipeline(width int) *markup.Pipeline {
	return markup.NewPipeline(m.renderer, markup.NewTerminalFormatter(width-2, m.opts.Profile))
}

// Init initializes the program.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, initHelp(m.width, m.opts.Profile))
}

// Msg types
type (
	replyMsg struct {
		pending chat.Pending
		reply   string
		err     error
	}
	clearedMsg  struct{ err error }
	exportedMsg struct {
		path string
		err  error
	}
	helpLoadedMsg *glamour.TermRenderer
	errMsg        error
)

func initHelp(width int, profile termenv.Profile) tea.Cmd {
	return func() tea.Msg {
		if width == 0 {
			width = 80
		}
		style := "dark"
		if profile == termenv.Ascii {
			style = "notty"
		}
		// Use a fixed style instead of WithAutoStyle to avoid terminal background detection
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width-4),
		)
		if err != nil {
			return errMsg(err)
		}
		return helpLoadedMsg(renderer)
	}
}

// Update handles events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 6 // input box, preview and status
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 3)
		m.textinput.Width = msg.Width - 6
		m.pipeline = m.newPipeline(msg.Width)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			raw := m.textinput.Value()
			input := strings.TrimSpace(raw)
			if input == "" {
				return m, nil
			}

			// "text /sym name" inserts a symbol after text.
			if i := strings.LastIndex(raw, " /sym "); i >= 0 && !strings.HasPrefix(input, "/") {
				return m.handleSym(raw[:i+1], raw[i+len(" /sym "):])
			}

			// Handle commands
			if strings.HasPrefix(input, "/") {
				m.textinput.Reset()
				return m.handleCommand(input)
			}

			if m.waiting {
				m.notice = "Still working on the last question..."
				return m, nil
			}

			m.textinput.Reset()
			return m.sendMessage(input)
		}

	case replyMsg:
		m.waiting = false
		out := m.ctrl.Resolve(msg.pending, msg.reply, msg.err)
		m.err = out.Err
		m.notice = ""
		m.refresh()
		return m, nil

	case clearedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.notice = "Conversation cleared."
		}
		m.refresh()
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.notice = "Conversation exported to " + msg.path
		}
		m.refresh()
		return m, nil

	case helpLoadedMsg:
		m.help = msg
		return m, nil

	case errMsg:
		m.err = msg
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	m.textinput, tiCmd = m.textinput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// View renders the UI.
func (m Model) View() string {
	header := m.styles.header.Render(fmt.Sprintf("%s • v%s", m.opts.ProductName, m.opts.Version))
	input := m.styles.input.Render(m.textinput.View())

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		header,
		m.viewport.View(),
		input,
		m.previewView(),
		m.statusView(),
	)
}

// previewView renders the input while it contains math.
func (m Model) previewView() string {
	value := m.textinput.Value()
	if strings.HasPrefix(strings.TrimSpace(value), "/") || !markup.HasMath(value) {
		return ""
	}
	return m.styles.preview.Render("Preview: " + m.pipeline.RenderContent(value).Output)
}

func (m Model) statusView() string {
	switch {
	case m.waiting:
		status := "Thinking..."
		if m.notice != "" {
			status = m.notice
		}
		return m.spinner.View() + m.styles.footer.Render(" "+status)
	case m.err != nil:
		return m.styles.err.Render("Error: " + mgErrors.PublicMessage(m.err))
	case m.notice != "":
		return m.styles.system.Render(m.notice)
	default:
		return m.styles.footer.Render("Enter to send • /help for commands • Esc to quit")
	}
}

// refresh re-renders the conversation into the viewport.
func (m *Model) refresh() {
	messages := m.ctrl.Store().Messages()
	if len(messages) == 0 {
		m.viewport.SetContent(m.welcome())
		return
	}

	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m Model) welcome() string {
	var b strings.Builder
	b.WriteString(m.styles.aiLabel.Render("Welcome to " + m.opts.ProductName + "!"))
	b.WriteString("\n")
	b.WriteString(m.styles.body.Render("Ask any math question. Try one of these with /prompt <n>:"))
	b.WriteString("\n")
	for i, p := range m.opts.Prompts {
		b.WriteString(m.styles.body.Render(fmt.Sprintf("%d. %s", i+1, m.pipeline.RenderContent(p).Output)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMessage(msg conversation.Message) string {
	label := m.styles.userLabel
	if msg.Sender == conversation.Assistant {
		label = m.styles.aiLabel
	}

	header := m.ctrl.Store().Label(msg.Sender) + ":"
	if m.opts.ShowTimestamps {
		header += " " + m.styles.system.Render(msg.Timestamp.Local().Format(m.opts.TimestampLayout))
	}
	return label.Render(header) + "\n" + m.styles.body.Render(m.pipeline.RenderContent(msg.Content).Output) + "\n"
}

func (m Model) sendMessage(content string) (tea.Model, tea.Cmd) {
	p, err := m.ctrl.Begin(content)
	if err != nil {
		m.err = err
		m.textinput.SetValue(content)
		m.textinput.CursorEnd()
		return m, nil
	}

	m.err = nil
	m.notice = ""
	m.waiting = true
	m.refresh()

	return m, tea.Batch(m.spinner.Tick, m.complete(p))
}

// complete runs the completion call off the UI goroutine.
func (m Model) complete(p chat.Pending) tea.Cmd {
	ctrl, timeout := m.ctrl, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		reply, err := ctrl.Complete(ctx, p)
		return replyMsg{pending: p, reply: reply, err: err}
	}
}

func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	// Validate command input
	if err := validation.ValidateCommand(input); err != nil {
		m.err = mgErrors.NewCommandError("input", "Invalid command. Use /help to see available commands.", err)
		return m, nil
	}

	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	m.err = nil
	m.notice = ""

	switch cmd {
	case "/exit", "/quit":
		return m, tea.Quit

	case "/clear", "/reset":
		store := m.ctrl.Store()
		return m, func() tea.Msg {
			return clearedMsg{err: store.Clear(context.Background())}
		}

	case "/export":
		dir := m.opts.ExportDir
		if arg != "" {
			dir = arg
		}
		if err := validation.ValidatePath(dir); err != nil {
			m.err = err
			return m, nil
		}
		store, now := m.ctrl.Store(), m.opts.Now()
		return m, func() tea.Msg {
			path, err := store.WriteExport(dir, now)
			return exportedMsg{path: path, err: err}
		}

	case "/help":
		text := helpMarkdown
		if m.help != nil {
			if rendered, err := m.help.Render(helpMarkdown); err == nil {
				text = rendered
			}
		}
		m.viewport.SetContent(text)
		m.viewport.GotoTop()
		return m, nil

	case "/history":
		m.refresh()
		return m, nil

	case "/symbols":
		m.viewport.SetContent(m.symbolsView())
		m.viewport.GotoTop()
		return m, nil

	case "/sym":
		return m.handleSym("", arg)

	case "/prompt":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(m.opts.Prompts) {
			m.err = mgErrors.NewCommandError("prompt", fmt.Sprintf("Choose a number between 1 and %d.", len(m.opts.Prompts)), err)
			return m, nil
		}
		m.textinput.SetValue(m.opts.Prompts[n-1])
		m.textinput.CursorEnd()
		return m, nil

	default:
		m.err = mgErrors.NewCommandError(strings.TrimPrefix(cmd, "/"), "Unknown command: "+cmd+". Use /help to see available commands.", nil)
		return m, nil
	}
}

// handleSym sets the input to prefix followed by the named symbol.
func (m Model) handleSym(prefix, name string) (Model, tea.Cmd) {
	name = strings.TrimSpace(name)
	sym, ok := palette.Lookup(name)
	if !ok {
		m.err = mgErrors.NewCommandError("sym", fmt.Sprintf("Unknown symbol %q. Use /symbols to list them.", name), nil)
		return m, nil
	}
	m.err = nil
	m.textinput.SetValue(palette.Insert(prefix, sym))
	m.textinput.CursorEnd()
	return m, nil
}

func (m Model) symbolsView() string {
	var b strings.Builder
	for _, group := range palette.Groups() {
		b.WriteString(m.styles.aiLabel.Render(group))
		b.WriteString("\n")
		for _, sym := range palette.All() {
			if sym.Group != group {
				continue
			}
			rendered := m.pipeline.RenderContent(sym.Insert).Output
			b.WriteString(m.styles.body.Render(fmt.Sprintf("%-20s %s", sym.Name, rendered)))
			b.WriteString("\n")
		}
	}
	b.WriteString(m.styles.system.Render("Insert with /sym <name>"))
	return b.String()
}
