package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockCache is an in-memory mock implementation of the Cache interface
// Used for testing without requiring a real Redis instance
type MockCache struct {
	data map[string]string
	mu   sync.RWMutex

	// FailWith, when set, is returned by every operation.
	FailWith error
}

// NewMockCache creates a new mock cache instance
func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string]string),
	}
}

// Get retrieves a value from the mock cache
func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailWith != nil {
		return "", m.FailWith
	}
	return m.data[key], nil // Empty string for non-existent keys (like Redis)
}

// Set stores a value in the mock cache
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	// Note: expiration is ignored in mock (no TTL implementation)
	m.data[key] = toString(value)
	return nil
}

// Del deletes keys from the mock cache
func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// SetNX sets a key only if it doesn't exist (for distributed locking)
func (m *MockCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return false, m.FailWith
	}
	if _, exists := m.data[key]; exists {
		return false, nil
	}

	m.data[key] = toString(value)
	return true, nil
}

// DelIfValue deletes a key only while it holds value
func (m *MockCache) DelIfValue(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return false, m.FailWith
	}
	if current, exists := m.data[key]; !exists || current != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

// Has reports whether a key is present
func (m *MockCache) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.data[key]
	return exists
}

// Health always returns nil for mock
func (m *MockCache) Health(ctx context.Context) error {
	return m.FailWith
}

// Close is a no-op for mock
func (m *MockCache) Close() error {
	return nil
}

// Clear resets the mock cache (useful for tests)
func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]string)
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
