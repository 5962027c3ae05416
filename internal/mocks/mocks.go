package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ZaguanLabs/mathgpt/internal/completion"
)

// MockCompleter simulates the completion service for testing
type MockCompleter struct {
	mu            sync.Mutex
	responses     []string
	responseIndex int
	err           error
	delay         time.Duration
	callCount     int
	requests      []completion.Request
	release       chan struct{}
}

// NewMockCompleter creates a completer answering with a fixed reply
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{
		responses: []string{"Let's solve it step by step: $x = 2$."},
	}
}

// SetResponse sets a custom response
func (m *MockCompleter) SetResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = []string{response}
	m.responseIndex = 0
}

// SetResponses sets multiple responses that will be returned in sequence
func (m *MockCompleter) SetResponses(responses []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.responseIndex = 0
}

// SetError makes every call fail with err
func (m *MockCompleter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay sets a simulated network delay
func (m *MockCompleter) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// Hold makes calls block until Release is called.
func (m *MockCompleter) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release = make(chan struct{})
}

// Release unblocks calls waiting after Hold.
func (m *MockCompleter) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.release != nil {
		close(m.release)
		m.release = nil
	}
}

// Complete implements completion.Completer
func (m *MockCompleter) Complete(ctx context.Context, req completion.Request) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.requests = append(m.requests, req)
	delay, release, err := m.delay, m.release, m.err
	var response string
	if len(m.responses) > 0 {
		response = m.responses[m.responseIndex%len(m.responses)]
		m.responseIndex++
	}
	m.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err != nil {
		return "", err
	}
	if response == "" {
		return "", errors.New("no response configured")
	}
	return response, nil
}

// GetCallCount returns the number of calls made
func (m *MockCompleter) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Requests returns every request received, in order
func (m *MockCompleter) Requests() []completion.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]completion.Request(nil), m.requests...)
}

// MockStorage is an in-memory conversation slot with error injection
type MockStorage struct {
	mu        sync.Mutex
	slots     map[string][]byte
	errors    map[string]error
	failures  map[string]int
	callCount map[string]int
}

// NewMockStorage creates a new mock storage instance
func NewMockStorage() *MockStorage {
	return &MockStorage{
		slots:     make(map[string][]byte),
		errors:    make(map[string]error),
		failures:  make(map[string]int),
		callCount: make(map[string]int),
	}
}

// SetError makes operation ("Get", "Set" or "Delete") fail with err until
// cleared with a nil err
func (m *MockStorage) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[operation] = err
}

// FailTimes makes the next n calls of operation fail
func (m *MockStorage) FailTimes(operation string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[operation] = n
}

func (m *MockStorage) check(operation string) error {
	m.callCount[operation]++
	if err := m.errors[operation]; err != nil {
		return err
	}
	if m.failures[operation] > 0 {
		m.failures[operation]--
		return errors.New("simulated " + operation + " failure")
	}
	return nil
}

// Get implements conversation.Storage
func (m *MockStorage) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("Get"); err != nil {
		return nil, false, err
	}
	v, ok := m.slots[key]
	return append([]byte(nil), v...), ok, nil
}

// Set implements conversation.Storage
func (m *MockStorage) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("Set"); err != nil {
		return err
	}
	m.slots[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements conversation.Storage
func (m *MockStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("Delete"); err != nil {
		return err
	}
	delete(m.slots, key)
	return nil
}

// Put stores raw bytes directly, bypassing error injection
func (m *MockStorage) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = append([]byte(nil), value...)
}

// Raw returns the stored bytes, bypassing error injection
func (m *MockStorage) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.slots[key]
	return v, ok
}

// GetCallCount returns how many times operation was called
func (m *MockStorage) GetCallCount(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount[operation]
}
