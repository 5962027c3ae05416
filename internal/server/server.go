// Package server exposes the tutoring chat over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ZaguanLabs/mathgpt/internal/chat"
	"github.com/ZaguanLabs/mathgpt/internal/conversation"
	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
	"github.com/ZaguanLabs/mathgpt/internal/markup"
	"github.com/ZaguanLabs/mathgpt/internal/security"
)

// Options configures a Handler.
type Options struct {
	// Limiter throttles POST /api/messages per client address. Nil disables
	// throttling.
	Limiter *security.RateLimiter
	Timeout time.Duration
	Logger  *zap.Logger
	Now     func() time.Time
}

// Handler serves the chat API.
type Handler struct {
	ctrl     *chat.Controller
	pipeline *markup.Pipeline
	opts     Options
	log      *zap.Logger
}

// NewHandler creates a handler. pipeline should format HTML.
func NewHandler(ctrl *chat.Controller, pipeline *markup.Pipeline, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{
		ctrl:     ctrl,
		pipeline: pipeline,
		opts:     opts,
		log:      opts.Logger.With(zap.String("component", "server")),
	}
}

// RegisterRoutes mounts the API on router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	apiGroup.GET("/messages", h.handleList)
	apiGroup.POST("/messages", h.rateLimit, h.handleSend)
	apiGroup.DELETE("/messages", h.handleClear)
	apiGroup.GET("/export", h.handleExport)
	apiGroup.POST("/preview", h.handlePreview)
}

// NewRouter builds a gin engine with logging and recovery around h.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(h.log), gin.Recovery())
	h.RegisterRoutes(router)
	return router
}

type messageResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	HTML      string    `json:"html"`
}

type sendRequest struct {
	Message string `json:"message"`
}

type previewRequest struct {
	Content string `json:"content"`
}

func (h *Handler) toResponse(m conversation.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		Content:   m.Content,
		Sender:    string(m.Sender),
		Timestamp: m.Timestamp,
		HTML:      h.pipeline.RenderContent(m.Content).Output,
	}
}

func (h *Handler) handleList(c *gin.Context) {
	messages, gen := h.ctrl.Store().Snapshot()

	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, h.toResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out, "generation": gen})
}

func (h *Handler) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	p, err := h.ctrl.Begin(req.Message)
	if err != nil {
		writeError(c, http.StatusBadRequest, mgErrors.PublicMessage(err), err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.Timeout)
	defer cancel()

	reply, callErr := h.ctrl.Complete(ctx, p)
	out := h.ctrl.Resolve(p, reply, callErr)

	body := gin.H{
		"question": h.toResponse(p.Question),
		"recorded": out.Recorded,
	}
	if out.Recorded {
		body["reply"] = h.toResponse(out.Reply)
	}

	if out.Err != nil {
		body["error"] = mgErrors.PublicMessage(out.Err)
		c.JSON(statusFor(out.Err), body)
		return
	}
	c.JSON(http.StatusCreated, body)
}

func (h *Handler) handleClear(c *gin.Context) {
	if err := h.ctrl.Store().Clear(c.Request.Context()); err != nil {
		writeError(c, http.StatusInternalServerError, mgErrors.PublicMessage(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleExport(c *gin.Context) {
	store := h.ctrl.Store()
	name := store.ExportFilename(h.opts.Now())

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(store.Export()+"\n"))
}

func (h *Handler) handlePreview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	res := h.pipeline.RenderContent(req.Content)
	c.JSON(http.StatusOK, gin.H{
		"html":     res.Output,
		"has_math": markup.HasMath(req.Content),
		"fallback": res.HasFallback(),
	})
}

func (h *Handler) rateLimit(c *gin.Context) {
	if h.opts.Limiter == nil {
		c.Next()
		return
	}
	ok, wait := h.opts.Limiter.Allow(c.ClientIP())
	if !ok {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}
	c.Next()
}

// statusFor maps a completion failure to an HTTP status.
func statusFor(err error) int {
	var (
		timeoutErr *mgErrors.TimeoutError
		apiErr     *mgErrors.APIError
	)
	switch {
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr) && apiErr.Status() == http.StatusTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func writeError(c *gin.Context, status int, message string, err error) {
	c.JSON(status, gin.H{
		"error":   message,
		"details": mgErrors.Sanitize(err.Error()),
	})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Run serves router on addr until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, addr string, router http.Handler, log *zap.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
