package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"

	"github.com/ZaguanLabs/mathgpt/internal/chat"
	"github.com/ZaguanLabs/mathgpt/internal/config"
	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
	"github.com/ZaguanLabs/mathgpt/internal/markup"
	"github.com/ZaguanLabs/mathgpt/internal/server"
	"github.com/ZaguanLabs/mathgpt/internal/tui"
)

var (
	version = "0.1.0"
	commit  = "none"
	date    = "unknown"
)

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fail("failed to load configuration: %v", err)
	}
	return cfg
}

func newSession(a *app, interactive bool) *chat.Session {
	profile := colorProfile(a.cfg.UI.Color)
	w := width(a.cfg.UI.Width)
	pipeline := markup.NewPipeline(a.renderer, markup.NewTerminalFormatter(w, profile))

	session, err := chat.NewSession(a.ctrl, pipeline, chat.SessionOptions{
		Version:         cleanVersion(),
		ProductName:     a.cfg.Tutor.ProductName,
		Prompts:         a.cfg.Tutor.Prompts,
		ShowTimestamps:  a.cfg.UI.ShowTimestamps,
		TimestampLayout: a.cfg.UI.TimestampLayout,
		Interactive:     interactive,
		Width:           w,
	})
	if err != nil {
		fail("failed to create session: %v", err)
	}
	if profile == termenv.Ascii {
		session.DisableColors()
	}
	return session
}

// handleDirectQuestion asks one question and prints the answer.
func handleDirectQuestion(ctx context.Context, a *app, args []string) {
	session := newSession(a, false)
	if err := session.Ask(ctx, strings.Join(args, " ")); err != nil {
		fail("%s", mgErrors.PublicMessage(err))
	}
}

// handleCLICommand processes slash commands in CLI mode
func handleCLICommand(ctx context.Context, a *app, args []string) {
	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "/help":
		showCLIHelp()
	case "/history":
		messages := a.store.Messages()
		if len(messages) == 0 {
			fmt.Println("No history yet.")
			return
		}
		fmt.Println(a.store.Export())
	case "/clear", "/reset":
		if err := a.store.Clear(ctx); err != nil {
			fail("%s", mgErrors.PublicMessage(err))
		}
		fmt.Println("Conversation cleared.")
	case "/export":
		dir := "."
		if len(commandArgs) > 0 {
			dir = commandArgs[0]
		}
		path, err := a.store.WriteExport(dir, time.Now())
		if err != nil {
			fail("%s", mgErrors.PublicMessage(err))
		}
		fmt.Printf("Conversation exported to %s\n", path)
	case "/exit", "/quit":
		// No-op in CLI mode
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fmt.Fprintf(os.Stderr, "Use 'mathgpt /help' to see available commands.\n")
		os.Exit(1)
	}
}

// showCLIHelp displays help for CLI mode
func showCLIHelp() {
	fmt.Println("MathGPT CLI Commands")
	fmt.Println("====================")
	fmt.Println()
	fmt.Println("Direct Questions:")
	fmt.Println(`  mathgpt "Solve $x^2 - 4 = 0$"          Ask a question directly`)
	fmt.Println()
	fmt.Println("Conversation:")
	fmt.Println("  mathgpt /history                       Print the saved conversation")
	fmt.Println("  mathgpt /export [dir]                  Save the conversation as a text file")
	fmt.Println("  mathgpt /clear                         Delete the saved conversation")
	fmt.Println()
	fmt.Println("Server:")
	fmt.Println("  mathgpt serve [--addr host:port]       Serve the HTTP API")
	fmt.Println()
	fmt.Println("Interactive Mode:")
	fmt.Println("  mathgpt                                Start the chat (TUI on a terminal)")
	fmt.Println("  mathgpt --plain                        Line-based chat without the TUI")
	fmt.Println("  mathgpt --config <path>                Use custom config file (.yaml or .toml)")
}

func runServe(ctx context.Context, configPath string, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides server.addr)")
	_ = fs.Parse(args)

	cfg := loadConfig(configPath)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	a, err := newApp(cfg, false, false)
	if err != nil {
		fail("%v", err)
	}
	defer a.Close()

	pipeline := markup.NewPipeline(a.renderer, markup.HTMLFormatter{})
	handler := server.NewHandler(a.ctrl, pipeline, server.Options{
		Limiter: a.limiter,
		Timeout: cfg.Completion.Timeout(),
		Logger:  a.log,
	})

	if err := server.Run(ctx, cfg.Server.Addr, server.NewRouter(handler), a.log); err != nil {
		fail("server: %v", err)
	}
}

func cleanVersion() string {
	v := strings.TrimPrefix(version, "v")
	if commit != "none" && commit != "" {
		v = fmt.Sprintf("%s (build %s)", v, commit)
	}
	return v
}

func main() {
	mgErrors.SetSecurityLevel(mgErrors.LevelProduction)

	var (
		configPath  string
		plain       bool
		debug       bool
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&plain, "plain", false, "Use the line-based chat instead of the TUI")
	flag.BoolVar(&debug, "debug", false, "Show full error details")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("mathgpt %s (%s)\n", cleanVersion(), date)
		return
	}
	if debug {
		mgErrors.SetSecurityLevel(mgErrors.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) > 0 && args[0] == "serve" {
		runServe(ctx, configPath, args[1:])
		return
	}

	cfg := loadConfig(configPath)
	useTUI := len(args) == 0 && !plain && terminal()

	a, err := newApp(cfg, true, true)
	if err != nil {
		fail("%v", err)
	}
	defer a.Close()

	switch {
	case len(args) > 0 && strings.HasPrefix(args[0], "/"):
		handleCLICommand(ctx, a, args)
	case len(args) > 0:
		handleDirectQuestion(ctx, a, args)
	case useTUI:
		model := tui.NewModel(a.ctrl, a.renderer, tui.Options{
			ProductName:     cfg.Tutor.ProductName,
			Version:         cleanVersion(),
			Prompts:         cfg.Tutor.Prompts,
			ShowTimestamps:  cfg.UI.ShowTimestamps,
			TimestampLayout: cfg.UI.TimestampLayout,
			Profile:         colorProfile(cfg.UI.Color),
			Timeout:         cfg.Completion.Timeout(),
		})
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			fail("running program: %v", err)
		}
	default:
		session := newSession(a, terminal())
		if err := session.Run(ctx); err != nil {
			fail("%v", err)
		}
	}
}
