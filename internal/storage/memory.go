package storage

import "sync"

// Memory keeps slots in process memory. Values are copied on the way in and
// out.
type Memory struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string][]byte)}
}

// Get returns the value stored under key.
func (m *Memory) Get(key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.slots[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set replaces the value stored under key.
func (m *Memory) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots[key] = append([]byte{}, value...)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.slots, key)
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
