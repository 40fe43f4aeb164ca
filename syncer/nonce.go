package syncer

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// NonceSource reports the account's pending nonce.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceTracker hands out nonces for the signing account. Each reservation reconciles
// the local counter with the chain's pending nonce, so a broadcast that never landed
// does not leave a permanent gap.
type NonceTracker struct {
	source  NonceSource
	account common.Address
	logger  *zap.Logger

	mu   sync.Mutex
	next uint64
}

// NewNonceTracker creates a tracker. start seeds the local counter; source may be
// nil to track purely in memory.
func NewNonceTracker(source NonceSource, account common.Address, start uint64, logger *zap.Logger) *NonceTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NonceTracker{
		source:  source,
		account: account,
		next:    start,
		logger:  logger.Named("nonce"),
	}
}

// Reserve returns the nonce for the next submission.
func (n *NonceTracker) Reserve(ctx context.Context) uint64 {
	var (
		chain  uint64
		haveCh bool
	)
	if n.source != nil {
		v, err := n.source.PendingNonceAt(ctx, n.account)
		if err != nil {
			n.logger.Warn("pending nonce read failed, using local counter", zap.Error(err))
		} else {
			chain, haveCh = v, true
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if haveCh && chain > n.next {
		n.logger.Debug("nonce advanced from chain",
			zap.Uint64("local", n.next),
			zap.Uint64("chain", chain))
		n.next = chain
	}
	nonce := n.next
	n.next++
	return nonce
}

// Release returns a nonce whose broadcast failed. It only rewinds when no later
// nonce has been handed out since.
func (n *NonceTracker) Release(nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.next == nonce+1 {
		n.next = nonce
	}
}

// Peek returns the next nonce without reserving it.
func (n *NonceTracker) Peek() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next
}
