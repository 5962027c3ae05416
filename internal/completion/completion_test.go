package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ZaguanLabs/mathgpt/internal/conversation"
	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
)

func testHistory() []conversation.Message {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []conversation.Message{
		{ID: "1", Content: "What is $2+2$?", Sender: conversation.User, Timestamp: t0},
		{ID: "2", Content: "$2+2=4$", Sender: conversation.Assistant, Timestamp: t0.Add(time.Second)},
	}
}

func TestNewFunctionClient(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantError bool
	}{
		{"valid url", "https://example.supabase.co/functions/v1/chat-gpt", false},
		{"empty url", "", true},
		{"whitespace url", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewFunctionClient(tt.url, "anon-key", 0)
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if client == nil {
				t.Error("expected client, got nil")
			}
		})
	}
}

func TestFunctionClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer anon-key" {
			t.Errorf("unexpected authorization header: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("unexpected apikey header: %s", r.Header.Get("apikey"))
		}

		var body functionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Message != "Solve $x^2=4$" {
			t.Errorf("unexpected message: %q", body.Message)
		}
		if len(body.ConversationHistory) != 2 || body.ConversationHistory[1].Sender != "assistant" {
			t.Errorf("unexpected history: %+v", body.ConversationHistory)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"response": "$x = \\pm 2$"})
	}))
	defer server.Close()

	client, err := NewFunctionClient(server.URL, "anon-key", time.Second)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	reply, err := client.Complete(context.Background(), Request{Message: "Solve $x^2=4$", History: testHistory()})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if reply != `$x = \pm 2$` {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestFunctionClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"function error", http.StatusInternalServerError, `{"error":"OpenAI API error: 429"}`, "OpenAI API error: 429"},
		{"nested error", http.StatusUnauthorized, `{"error":{"message":"Invalid JWT"}}`, "Invalid JWT"},
		{"html body", http.StatusBadGateway, `<html>bad gateway</html>`, "Bad Gateway"},
		{"missing response", http.StatusOK, `{}`, "no response received"},
		{"error with 200", http.StatusOK, `{"error":"Message is required"}`, "Message is required"},
		{"malformed", http.StatusOK, `{"response":`, "malformed response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := NewFunctionClient(server.URL, "", time.Second)
			_, err := client.Complete(context.Background(), Request{Message: "hi"})

			var apiErr *mgErrors.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T: %v", err, err)
			}
			if apiErr.Message() != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, apiErr.Message())
			}
		})
	}
}

func TestFunctionClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, _ := NewFunctionClient(server.URL, "", 20*time.Millisecond)
	_, err := client.Complete(context.Background(), Request{Message: "hi"})

	var timeoutErr *mgErrors.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
}

func TestFunctionClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := NewFunctionClient(url, "", time.Second)
	_, err := client.Complete(context.Background(), Request{Message: "hi"})

	var netErr *mgErrors.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
}

func TestNewOpenAIClient(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		model     string
		wantError bool
	}{
		{"valid", "test-key", "gpt-4o-mini", false},
		{"empty key", "", "gpt-4o-mini", true},
		{"whitespace key", "   ", "gpt-4o-mini", true},
		{"empty model", "test-key", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOpenAIClient(OpenAIOptions{APIKey: tt.apiKey, Model: tt.model})
			if (err != nil) != tt.wantError {
				t.Errorf("wantError=%v, got %v", tt.wantError, err)
			}
		})
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %s", r.Header.Get("Authorization"))
		}

		var body struct {
			Model               string `json:"model"`
			MaxCompletionTokens int    `json:"max_completion_tokens"`
			Messages            []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "gpt-4o-mini" || body.MaxCompletionTokens != 1000 {
			t.Errorf("unexpected request: %+v", body)
		}

		roles := make([]string, 0, len(body.Messages))
		for _, m := range body.Messages {
			roles = append(roles, m.Role)
		}
		if got := strings.Join(roles, ","); got != "system,assistant,user" {
			t.Errorf("unexpected roles %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "test-id",
			"object": "chat.completion",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]string{
						"role":    "assistant",
						"content": "Factor: $(x-1)(x+6)=0$",
					},
				},
			},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIOptions{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		Model:        "gpt-4o-mini",
		MaxTokens:    1000,
		SystemPrompt: SystemPrompt(ModeDirect, ""),
		HistoryLimit: 1,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	reply, err := client.Complete(context.Background(), Request{Message: "Solve $x^2+5x-6=0$", History: testHistory()})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if reply != "Factor: $(x-1)(x+6)=0$" {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestOpenAIClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{
				"message": "Invalid API key",
				"type":    "invalid_request_error",
			},
		})
	}))
	defer server.Close()

	client, _ := NewOpenAIClient(OpenAIOptions{APIKey: "bad-key", BaseURL: server.URL, Model: "gpt-4o-mini"})
	_, err := client.Complete(context.Background(), Request{Message: "hi"})

	var apiErr *mgErrors.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status() != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.Status())
	}
}

func TestSystemPrompt(t *testing.T) {
	if got := SystemPrompt(ModeSocratic, ""); !strings.Contains(got, "asking questions") {
		t.Errorf("expected socratic prompt, got %q", got)
	}
	if got := SystemPrompt("", ""); !strings.Contains(got, "step-by-step") {
		t.Errorf("expected direct prompt, got %q", got)
	}
	if got := SystemPrompt(ModeSocratic, "custom"); got != "custom" {
		t.Errorf("expected override, got %q", got)
	}
}
