package completion

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	openaiapi "github.com/sashabaranov/go-openai"

	"github.com/ZaguanLabs/mathgpt/internal/conversation"
	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
)

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	HistoryLimit int
	Timeout      time.Duration
}

// OpenAIClient asks an OpenAI-compatible chat completion API directly.
type OpenAIClient struct {
	api  *openaiapi.Client
	opts OpenAIOptions
}

// NewOpenAIClient returns a client using opts.
func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	if opts.APIKey == "" {
		return nil, errors.New("api key cannot be empty")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("model cannot be empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	cfg := openaiapi.DefaultConfig(opts.APIKey)
	if base := strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		cfg.BaseURL = base
	}

	return &OpenAIClient{api: openaiapi.NewClientWithConfig(cfg), opts: opts}, nil
}

// Complete sends the system prompt, the recent history and the new message.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	apiReq := openaiapi.ChatCompletionRequest{
		Model:               c.opts.Model,
		MaxCompletionTokens: c.opts.MaxTokens,
		Temperature:         c.opts.Temperature,
		Stream:              false,
		Messages:            c.messages(req),
	}

	// Reasoning models reject a temperature.
	if fixedTemperature(c.opts.Model) {
		apiReq.Temperature = 0
	}

	resp, err := c.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return "", c.mapError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", mgErrors.NewAPIError(200, "no response received", "empty_response", nil)
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) messages(req Request) []openaiapi.ChatCompletionMessage {
	history := req.History
	if c.opts.HistoryLimit > 0 && len(history) > c.opts.HistoryLimit {
		history = history[len(history)-c.opts.HistoryLimit:]
	}

	msgs := make([]openaiapi.ChatCompletionMessage, 0, len(history)+2)
	if c.opts.SystemPrompt != "" {
		msgs = append(msgs, openaiapi.ChatCompletionMessage{
			Role:    openaiapi.ChatMessageRoleSystem,
			Content: c.opts.SystemPrompt,
		})
	}
	for _, m := range history {
		role := openaiapi.ChatMessageRoleUser
		if m.Sender == conversation.Assistant {
			role = openaiapi.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openaiapi.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(msgs, openaiapi.ChatCompletionMessage{
		Role:    openaiapi.ChatMessageRoleUser,
		Content: req.Message,
	})
}

func fixedTemperature(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (c *OpenAIClient) mapError(err error) error {
	var apiErr *openaiapi.APIError
	if errors.As(err, &apiErr) {
		return mgErrors.NewAPIError(apiErr.HTTPStatusCode, apiErr.Message, apiErr.Type, err)
	}

	var reqErr *openaiapi.RequestError
	if errors.As(err, &reqErr) {
		return mgErrors.NewAPIError(reqErr.HTTPStatusCode, "request failed", "request_error", err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return mgErrors.NewTimeoutError("completion", c.opts.Timeout.String(), err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return mgErrors.NewNetworkError(c.opts.BaseURL, "request failed", 0, err)
}
