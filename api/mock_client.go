package api

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MockReputationClient answers identity and follower lookups from memory.
type MockReputationClient struct {
	mu sync.RWMutex

	// Response data
	Identities map[common.Address]*Identity
	Followers  map[string]uint64

	// FollowersErr fails every follower lookup while set.
	FollowersErr error

	// Call tracking
	Calls map[string]int

	// Error injection
	ErrorOnNext map[string]error
}

// NewMockReputationClient creates an empty mock reputation client.
func NewMockReputationClient() *MockReputationClient {
	return &MockReputationClient{
		Identities:  make(map[common.Address]*Identity),
		Followers:   make(map[string]uint64),
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
	}
}

func (m *MockReputationClient) trackCall(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name]++
	if err, ok := m.ErrorOnNext[name]; ok {
		delete(m.ErrorOnNext, name)
		return err
	}
	return nil
}

// AddUser registers an identity and its follower count.
func (m *MockReputationClient) AddUser(addr common.Address, username, userID string, followers uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Identities[addr] = &Identity{TwitterUsername: username, TwitterUserID: userID}
	m.Followers[userID] = followers
}

// CallCount returns how many times a method was called.
func (m *MockReputationClient) CallCount(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Calls[name]
}

// LookupUser implements the identity lookup.
func (m *MockReputationClient) LookupUser(ctx context.Context, addr common.Address) (*Identity, error) {
	if err := m.trackCall("LookupUser"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.Identities[addr]
	if !ok {
		return nil, ErrNoIdentity
	}
	cp := *id
	return &cp, nil
}

// FollowerCount implements the follower lookup.
func (m *MockReputationClient) FollowerCount(ctx context.Context, userID string) (uint64, error) {
	if err := m.trackCall("FollowerCount"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FollowersErr != nil {
		return 0, m.FollowersErr
	}
	return m.Followers[userID], nil
}

// MockSequencer records raw transactions instead of broadcasting them.
type MockSequencer struct {
	mu sync.Mutex

	// Result is returned for every accepted submission.
	Result string
	// Reject makes every submission fail.
	Reject bool

	Sent []string
}

// SendRawTransaction records rawTx and returns the configured outcome.
func (m *MockSequencer) SendRawTransaction(ctx context.Context, rawTx string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, rawTx)
	if m.Reject {
		return "", false
	}
	return m.Result, true
}

// SentCount returns the number of recorded submissions.
func (m *MockSequencer) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
