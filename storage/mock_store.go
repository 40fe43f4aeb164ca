package storage

import (
	"context"
	"sync"
	"time"

	"github.com/buidlcat/friendrekt/models"
)

// MockStore is a mock implementation of DataStore for testing
type MockStore struct {
	mu sync.RWMutex

	Snipes []models.SnipeRecord

	// Call tracking for assertions
	Calls map[string]int

	// Error injection for testing error paths
	ErrorOnNext map[string]error
}

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
	}
}

func (m *MockStore) trackCall(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name]++
	if err, ok := m.ErrorOnNext[name]; ok {
		delete(m.ErrorOnNext, name)
		return err
	}
	return nil
}

// CallCount returns how many times name was called.
func (m *MockStore) CallCount(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Calls[name]
}

// FailNext makes the next call to name return err.
func (m *MockStore) FailNext(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorOnNext[name] = err
}

func (m *MockStore) Close() error {
	return m.trackCall("Close")
}

func (m *MockStore) SaveSnipe(ctx context.Context, rec *models.SnipeRecord) error {
	if err := m.trackCall("SaveSnipe"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.ID = int64(len(m.Snipes) + 1)
	m.Snipes = append(m.Snipes, *rec)
	return nil
}

func (m *MockStore) ListSnipes(ctx context.Context, limit int) ([]models.SnipeRecord, error) {
	if err := m.trackCall("ListSnipes"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = normalizeLimit(limit)
	out := make([]models.SnipeRecord, 0, limit)
	for i := len(m.Snipes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.Snipes[i])
	}
	return out, nil
}

func (m *MockStore) GetSnipeSummary(ctx context.Context) (SnipeSummary, error) {
	if err := m.trackCall("GetSnipeSummary"); err != nil {
		return SnipeSummary{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum SnipeSummary
	for _, s := range m.Snipes {
		sum.Total++
		if s.Success {
			sum.Succeeded++
		}
	}
	sum.Failed = sum.Total - sum.Succeeded
	return sum, nil
}

// SavedSnipes returns a copy of every saved record in insertion order.
func (m *MockStore) SavedSnipes() []models.SnipeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.SnipeRecord(nil), m.Snipes...)
}
