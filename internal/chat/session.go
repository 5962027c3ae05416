package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"

	"github.com/ZaguanLabs/mathgpt/internal/conversation"
	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
	"github.com/ZaguanLabs/mathgpt/internal/markup"
	"github.com/ZaguanLabs/mathgpt/internal/palette"
	"github.com/ZaguanLabs/mathgpt/internal/validation"
)

// ANSI color codes and styles for terminal output
const (
	colorReset  = "\033[0m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	styleDim    = "\033[2m"
)

const helpMarkdown = `# Commands

| Command | |
|---|---|
| ` + "`/help`" + ` | Show this help |
| ` + "`/exit`" + ` | Leave the chat |
| ` + "`/clear`" + ` | Delete the saved conversation |
| ` + "`/history`" + ` | Show the conversation so far |
| ` + "`/export [dir]`" + ` | Save the conversation as a text file |
| ` + "`/prompt <n>`" + ` | Ask one of the suggested questions |
| ` + "`/symbols`" + ` | List math symbols |
| ` + "`/sym <name>`" + ` | Insert a math symbol |

Write math between ` + "`$...$`" + ` (inline) or ` + "`$$...$$`" + ` (display).
`

// SessionOptions configures a line-oriented chat session.
type SessionOptions struct {
	Version         string
	ProductName     string
	Prompts         []string
	ShowTimestamps  bool
	TimestampLayout string
	// Interactive enables line editing and history through liner. It should
	// only be set when stdin is a terminal.
	Interactive bool
	Width       int
}

// Session is a line-oriented chat loop over a Controller.
type Session struct {
	ctrl       *Controller
	pipeline   *markup.Pipeline
	opts       SessionOptions
	input      io.Reader
	output     io.Writer
	useColors  bool
	helpRender func(string) (string, error)
	now        func() time.Time
	pending    string
}

// NewSession creates a new chat session. pipeline renders every message
// before it is printed.
func NewSession(ctrl *Controller, pipeline *markup.Pipeline, opts SessionOptions) (*Session, error) {
	if ctrl == nil {
		return nil, errors.New("controller cannot be nil")
	}
	if pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if opts.ProductName == "" {
		opts.ProductName = "MathGPT"
	}
	if opts.TimestampLayout == "" {
		opts.TimestampLayout = "15:04"
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}

	return &Session{
		ctrl:      ctrl,
		pipeline:  pipeline,
		opts:      opts,
		input:     os.Stdin,
		output:    os.Stdout,
		useColors: true,
		now:       time.Now,
	}, nil
}

// lineReader abstracts liner and a plain scanner.
type lineReader interface {
	Prompt(prompt, prefill string) (string, error)
	Close() error
}

type linerReader struct{ state *liner.State }

func (l *linerReader) Prompt(prompt, prefill string) (string, error) {
	var (
		line string
		err  error
	)
	if prefill != "" {
		line, err = l.state.PromptWithSuggestion(prompt, prefill, -1)
	} else {
		line, err = l.state.Prompt(prompt)
	}
	if err == nil && strings.TrimSpace(line) != "" {
		l.state.AppendHistory(line)
	}
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	return line, err
}

func (l *linerReader) Close() error { return l.state.Close() }

type scanReader struct {
	scanner *bufio.Scanner
	output  io.Writer
}

func (s *scanReader) Prompt(prompt, prefill string) (string, error) {
	fmt.Fprint(s.output, prompt)
	if prefill != "" {
		fmt.Fprintln(s.output, prefill)
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return prefill + s.scanner.Text(), nil
}

func (s *scanReader) Close() error { return nil }

func (s *Session) reader() lineReader {
	if s.opts.Interactive {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		return &linerReader{state: state}
	}
	scanner := bufio.NewScanner(s.input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &scanReader{scanner: scanner, output: s.output}
}

// Run starts the interactive chat loop.
func (s *Session) Run(ctx context.Context) error {
	if s == nil {
		return errors.New("session is nil")
	}
	if ctx == nil {
		return errors.New("context is nil")
	}

	in := s.reader()
	defer in.Close()

	s.printWelcome()

	for {
		if ctx.Err() != nil {
			return nil
		}

		prefill := s.pending
		s.pending = ""
		line, err := in.Prompt(s.colorize(colorCyan, "> "), prefill)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		// Handle commands
		if strings.HasPrefix(input, "/") {
			exit, err := s.handleCommand(ctx, input)
			if err != nil {
				s.printError(err)
			}
			if exit {
				return nil
			}
			continue
		}

		if err := s.ask(ctx, input); err != nil {
			s.printError(err)
		}
	}
}

// Ask sends one question and prints the exchange. It is used for the
// non-interactive single question mode.
func (s *Session) Ask(ctx context.Context, question string) error {
	return s.ask(ctx, question)
}

func (s *Session) ask(ctx context.Context, input string) error {
	p, err := s.ctrl.Begin(input)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.output, s.colorize(styleDim, "Thinking..."))
	reply, callErr := s.ctrl.Complete(ctx, p)
	out := s.ctrl.Resolve(p, reply, callErr)

	if out.Recorded {
		s.printMessage(out.Reply)
	}
	return out.Err
}

func (s *Session) handleCommand(ctx context.Context, input string) (exit bool, err error) {
	if err := validation.ValidateCommand(input); err != nil {
		return false, unknownCommand(input)
	}

	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		s.println(s.colorize(colorYellow, "Goodbye!"))
		return true, nil

	case "/reset", "/clear":
		if err := s.ctrl.Store().Clear(ctx); err != nil {
			return false, err
		}
		s.println(s.colorize(colorYellow, "Conversation cleared."))
		return false, nil

	case "/help":
		s.printHelp()
		return false, nil

	case "/history":
		s.printHistory()
		return false, nil

	case "/export":
		dir := arg
		if dir == "" {
			dir = "."
		}
		if err := validation.ValidatePath(dir); err != nil {
			return false, err
		}
		path, err := s.ctrl.Store().WriteExport(dir, s.now())
		if err != nil {
			return false, err
		}
		s.println(s.colorize(colorYellow, "Conversation exported to "+path))
		return false, nil

	case "/prompt":
		n, convErr := strconv.Atoi(arg)
		if convErr != nil || n < 1 || n > len(s.opts.Prompts) {
			return false, mgErrors.NewCommandError("prompt", fmt.Sprintf("choose a number between 1 and %d", len(s.opts.Prompts)), convErr)
		}
		return false, s.ask(ctx, s.opts.Prompts[n-1])

	case "/symbols":
		s.printSymbols()
		return false, nil

	case "/sym":
		sym, ok := palette.Lookup(arg)
		if !ok {
			return false, mgErrors.NewCommandError("sym", fmt.Sprintf("unknown symbol %q, see /symbols", arg), nil)
		}
		s.pending = palette.Insert(s.pending, sym)
		if !s.opts.Interactive {
			s.println(sym.Insert)
		}
		return false, nil

	default:
		return false, unknownCommand(name)
	}
}

func unknownCommand(name string) error {
	return mgErrors.NewCommandError(strings.TrimPrefix(name, "/"), fmt.Sprintf("unknown command %q. Try /help", name), nil)
}

func (s *Session) printWelcome() {
	s.println(s.colorize(colorCyan, fmt.Sprintf("=== %s v%s ===", s.opts.ProductName, s.opts.Version)))
	if n := s.ctrl.Store().Len(); n > 0 {
		s.println(s.colorize(colorYellow, fmt.Sprintf("Restored %d messages. /history shows them, /clear starts over.", n)))
	} else if len(s.opts.Prompts) > 0 {
		s.println("Try one of these with /prompt <n>:")
		for i, p := range s.opts.Prompts {
			s.println(fmt.Sprintf("  %d. %s", i+1, s.render(p)))
		}
	}
	s.println(s.colorize(colorYellow, "Type /help for commands, /exit to quit"))
	s.println("")
}

func (s *Session) printHelp() {
	if s.helpRender == nil {
		style := "notty"
		if s.useColors {
			style = "dark"
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(s.opts.Width),
		)
		if err != nil {
			s.println(helpMarkdown)
			return
		}
		s.helpRender = r.Render
	}

	rendered, err := s.helpRender(helpMarkdown)
	if err != nil {
		// Fallback to plain text if rendering fails
		s.println(helpMarkdown)
		return
	}
	fmt.Fprint(s.output, rendered)
}

func (s *Session) printSymbols() {
	for _, group := range palette.Groups() {
		s.println(s.colorize(colorYellow, group))
		for _, sym := range palette.All() {
			if sym.Group != group {
				continue
			}
			s.println(fmt.Sprintf("  %-20s %-10s %s", sym.Name, s.render(sym.Insert), sym.Insert))
		}
	}
}

func (s *Session) printHistory() {
	messages := s.ctrl.Store().Messages()
	if len(messages) == 0 {
		s.println(s.colorize(colorYellow, "No history yet."))
		return
	}

	s.println(s.colorize(colorYellow, "=== History ==="))
	for _, msg := range messages {
		s.printMessage(msg)
	}
}

func (s *Session) printMessage(msg conversation.Message) {
	color := colorCyan
	if msg.Sender == conversation.Assistant {
		color = colorGreen
	}

	header := s.ctrl.Store().Label(msg.Sender) + ":"
	if s.opts.ShowTimestamps {
		header = fmt.Sprintf("[%s] %s", msg.Timestamp.Local().Format(s.opts.TimestampLayout), header)
	}
	s.println(s.colorize(color, header))
	s.println(s.render(msg.Content))
	s.println("")
}

func (s *Session) render(content string) string {
	return s.pipeline.RenderContent(content).Output
}

func (s *Session) printError(err error) {
	s.println(s.colorize(colorRed, "Error: "+mgErrors.PublicMessage(err)))
}

func (s *Session) println(text string) {
	fmt.Fprintln(s.output, text)
}

func (s *Session) colorize(color, text string) string {
	if !s.useColors {
		return text
	}
	return color + text + colorReset
}

// SetIO overrides input/output streams (useful for testing).
func (s *Session) SetIO(in io.Reader, out io.Writer) {
	if in != nil {
		s.input = in
	}
	if out != nil {
		s.output = out
	}
}

// DisableColors turns off ANSI color output.
func (s *Session) DisableColors() {
	s.useColors = false
}
