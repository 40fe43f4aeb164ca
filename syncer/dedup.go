package syncer

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultDedupCapacity is the number of recent transaction hashes remembered.
const DefaultDedupCapacity = 10

// FIFOSet remembers the N most recently inserted transaction hashes. Inserting beyond
// capacity evicts the oldest entry. A single instance is shared by every handler for
// the life of the process.
type FIFOSet struct {
	mu    sync.Mutex
	ring  []common.Hash
	head  int // index of the oldest entry
	size  int
	index map[common.Hash]struct{}
}

// NewFIFOSet creates a set holding at most capacity hashes.
func NewFIFOSet(capacity int) *FIFOSet {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &FIFOSet{
		ring:  make([]common.Hash, capacity),
		index: make(map[common.Hash]struct{}, capacity),
	}
}

// Contains reports whether id is currently remembered.
func (s *FIFOSet) Contains(id common.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

// Insert records id. Inserting a present id changes neither order nor size.
func (s *FIFOSet) Insert(id common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(id)
}

// Observe checks and inserts id in one step. It returns true when id was unseen, so
// exactly one of several concurrent callers with the same id gets true.
func (s *FIFOSet) Observe(id common.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; ok {
		return false
	}
	s.insertLocked(id)
	return true
}

// Len returns the number of remembered hashes.
func (s *FIFOSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Cap returns the fixed capacity.
func (s *FIFOSet) Cap() int {
	return len(s.ring)
}

func (s *FIFOSet) insertLocked(id common.Hash) {
	if _, ok := s.index[id]; ok {
		return
	}
	if s.size == len(s.ring) {
		delete(s.index, s.ring[s.head])
		s.ring[s.head] = id
		s.head = (s.head + 1) % len(s.ring)
	} else {
		s.ring[(s.head+s.size)%len(s.ring)] = id
		s.size++
	}
	s.index[id] = struct{}{}
}
