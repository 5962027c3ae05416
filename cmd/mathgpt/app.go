package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ZaguanLabs/mathgpt/internal/chat"
	"github.com/ZaguanLabs/mathgpt/internal/completion"
	"github.com/ZaguanLabs/mathgpt/internal/config"
	"github.com/ZaguanLabs/mathgpt/internal/conversation"
	"github.com/ZaguanLabs/mathgpt/internal/logging"
	"github.com/ZaguanLabs/mathgpt/internal/markup"
	"github.com/ZaguanLabs/mathgpt/internal/security"
	"github.com/ZaguanLabs/mathgpt/internal/storage"
	"github.com/ZaguanLabs/mathgpt/internal/typeset"
)

// app holds the wired components shared by every mode.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	backend  storage.Backend
	store    *conversation.Store
	ctrl     *chat.Controller
	renderer *markup.Renderer
	limiter  *security.RateLimiter
}

// newApp wires storage, completion and rendering from cfg. quiet keeps logs
// off the terminal. throttle wraps the completer with the local rate limit;
// the HTTP server limits per client instead.
func newApp(cfg *config.Config, quiet, throttle bool) (*app, error) {
	log, err := logging.New(cfg.Logging, quiet)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	backend, err := storage.Open(strings.ToLower(cfg.Storage.Driver), cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	store := conversation.Open(backend, conversation.Options{
		Key:          cfg.Storage.Key,
		ProductLabel: cfg.Tutor.ProductName,
		Logger:       log,
	})

	completer, err := newCompleter(cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}

	limiter := security.NewRateLimiter(security.RateLimitConfig{
		PerMinute: cfg.Completion.RateLimit,
		Burst:     5,
	})
	if throttle && cfg.Completion.RateLimit > 0 {
		completer = security.Throttle(completer, limiter, "local")
	}

	ctrl, err := chat.NewController(store, completer, chat.Options{
		ErrorReply: cfg.Completion.ErrorReply,
		Logger:     log,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	cached, err := typeset.NewCached(typeset.NewUnicode(), cfg.Render.CacheSize)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		backend:  backend,
		store:    store,
		ctrl:     ctrl,
		renderer: markup.NewRenderer(cached, log),
		limiter:  limiter,
	}, nil
}

func newCompleter(cfg *config.Config) (completion.Completer, error) {
	c := cfg.Completion
	switch strings.ToLower(c.Provider) {
	case config.ProviderOpenAI:
		client, err := completion.NewOpenAIClient(completion.OpenAIOptions{
			APIKey:       c.Key,
			BaseURL:      c.URL,
			Model:        c.Model,
			Temperature:  float32(c.Temperature),
			MaxTokens:    c.MaxTokens,
			SystemPrompt: completion.SystemPrompt(cfg.Tutor.Mode, cfg.Tutor.SystemPrompt),
			HistoryLimit: c.HistoryLimit,
			Timeout:      c.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create completion client: %w", err)
		}
		return client, nil
	default:
		client, err := completion.NewFunctionClient(c.URL, c.Key, c.Timeout())
		if err != nil {
			return nil, fmt.Errorf("failed to create completion client: %w", err)
		}
		return client, nil
	}
}

func (a *app) Close() {
	a.limiter.Stop()
	if err := a.backend.Close(); err != nil {
		a.log.Warn("close storage", zap.Error(err))
	}
	_ = a.log.Sync()
}

// terminal reports whether both stdin and stdout are terminals.
func terminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// colorProfile resolves ui.color against the output terminal.
func colorProfile(setting string) termenv.Profile {
	switch strings.ToLower(setting) {
	case "never":
		return termenv.Ascii
	case "always":
		return termenv.ANSI256
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// width resolves ui.width, falling back to the terminal width.
func width(setting int) int {
	if setting > 0 {
		return setting
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
