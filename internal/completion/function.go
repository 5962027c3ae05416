package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ZaguanLabs/mathgpt/internal/conversation"
	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
)

const defaultTimeout = 60 * time.Second

// maxResponseBytes bounds how much of a reply body is read.
const maxResponseBytes = 4 << 20

// FunctionClient calls a hosted chat function that accepts
// {message, conversationHistory} and answers {response} or {error}.
type FunctionClient struct {
	url     string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

// NewFunctionClient returns a client for the function at url. apiKey is
// sent as a bearer token and apikey header when set.
func NewFunctionClient(url, apiKey string, timeout time.Duration) (*FunctionClient, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("function URL cannot be empty")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &FunctionClient{
		url:     url,
		apiKey:  strings.TrimSpace(apiKey),
		timeout: timeout,
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type historyItem struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

type functionRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []historyItem `json:"conversationHistory"`
}

// Complete posts req and returns the generated reply.
func (c *FunctionClient) Complete(ctx context.Context, req Request) (string, error) {
	if c == nil {
		return "", errors.New("client is nil")
	}

	payload, err := json.Marshal(functionRequest{
		Message:             req.Message,
		ConversationHistory: toHistory(req.History),
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", c.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", mgErrors.NewNetworkError(c.url, "read response", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.decodeError(bytes.NewReader(body), resp.StatusCode)
	}

	return c.decodeSuccess(bytes.NewReader(body))
}

func (c *FunctionClient) transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return mgErrors.NewTimeoutError("completion", c.timeout.String(), err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return mgErrors.NewNetworkError(c.url, "request failed", 0, err)
}

func (c *FunctionClient) decodeSuccess(r io.Reader) (string, error) {
	var response struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}

	if err := json.NewDecoder(r).Decode(&response); err != nil {
		return "", mgErrors.NewAPIError(http.StatusOK, "malformed response", "decode", err)
	}

	if response.Error != "" {
		return "", mgErrors.NewAPIError(http.StatusOK, response.Error, "function_error", nil)
	}
	if strings.TrimSpace(response.Response) == "" {
		return "", mgErrors.NewAPIError(http.StatusOK, "no response received", "empty_response", nil)
	}

	return response.Response, nil
}

func (c *FunctionClient) decodeError(r io.Reader, status int) error {
	var apiErr struct {
		Error interface{} `json:"error"`
	}

	if err := json.NewDecoder(r).Decode(&apiErr); err != nil {
		return mgErrors.NewAPIError(status, http.StatusText(status), "http_error", nil)
	}

	var message string
	switch e := apiErr.Error.(type) {
	case string:
		message = e
	case map[string]interface{}:
		if msg, ok := e["message"].(string); ok {
			message = msg
		}
	}

	if message == "" {
		message = http.StatusText(status)
	}
	return mgErrors.NewAPIError(status, message, "function_error", nil)
}

func toHistory(messages []conversation.Message) []historyItem {
	items := make([]historyItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, historyItem{
			ID:        m.ID,
			Content:   m.Content,
			Sender:    string(m.Sender),
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	return items
}
