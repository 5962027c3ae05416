package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/ZaguanLabs/mathgpt/internal/conversation"
)

// TestHelper bundles the mocks a chat test needs
type TestHelper struct {
	completer *MockCompleter
	storage   *MockStorage
}

// NewTestHelper creates a new test helper with fresh mocks
func NewTestHelper() *TestHelper {
	return &TestHelper{
		completer: NewMockCompleter(),
		storage:   NewMockStorage(),
	}
}

// WithStorageError injects a storage error for operation
func (h *TestHelper) WithStorageError(operation string, err error) *TestHelper {
	h.storage.SetError(operation, err)
	return h
}

// WithCompletionError makes the completer fail
func (h *TestHelper) WithCompletionError(err error) *TestHelper {
	h.completer.SetError(err)
	return h
}

// WithSlowResponse simulates slow completions
func (h *TestHelper) WithSlowResponse(delay time.Duration) *TestHelper {
	h.completer.SetDelay(delay)
	return h
}

// Completer returns the mock completer
func (h *TestHelper) Completer() *MockCompleter {
	return h.completer
}

// Storage returns the mock storage
func (h *TestHelper) Storage() *MockStorage {
	return h.storage
}

// Store opens a conversation store over the mock storage
func (h *TestHelper) Store() *conversation.Store {
	return conversation.Open(h.storage, conversation.Options{ClearBackoff: time.Millisecond})
}

// SuccessScenario creates a helper whose completer answers in sequence
func SuccessScenario() *TestHelper {
	h := NewTestHelper()
	h.completer.SetResponses([]string{
		"The roots are $x = 1$ and $x = -6$.",
		"A derivative measures the rate of change: $$f'(x) = \\lim_{h \\to 0} \\frac{f(x+h) - f(x)}{h}$$",
		"Great question!",
	})
	return h
}

// AssertStorageCallCount verifies how often operation hit storage
func AssertStorageCallCount(t testing.TB, storage *MockStorage, operation string, expected int) {
	t.Helper()
	actual := storage.GetCallCount(operation)
	if actual != expected {
		t.Fatalf("Expected %d %s calls, got %d", expected, operation, actual)
	}
}

// AssertCompleterCallCount verifies completer calls
func AssertCompleterCallCount(t testing.TB, completer *MockCompleter, expected int) {
	t.Helper()
	actual := completer.GetCallCount()
	if actual != expected {
		t.Fatalf("Expected %d completion calls, got %d", expected, actual)
	}
}

// AssertMessage verifies sender and content
func AssertMessage(t testing.TB, expected, actual conversation.Message) {
	t.Helper()
	if expected.Sender != actual.Sender {
		t.Fatalf("Expected sender %s, got %s", expected.Sender, actual.Sender)
	}
	if expected.Content != actual.Content {
		t.Fatalf("Expected content %q, got %q", expected.Content, actual.Content)
	}
}

// WaitForCompletion polls fn until it reports true or timeout passes
func WaitForCompletion(timeout time.Duration, fn func() bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return context.DeadlineExceeded
}

// CreateTestMessages creates alternating user and assistant messages
func CreateTestMessages(count int) []conversation.Message {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	messages := make([]conversation.Message, count)
	for i := 0; i < count; i++ {
		messages[i] = conversation.Message{
			Sender:    []conversation.Sender{conversation.User, conversation.Assistant}[i%2],
			Content:   "Test message " + string(rune('A'+i)) + " with $x_" + string(rune('0'+i%10)) + "$",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
	}
	return messages
}
