// Package service resolves wallet reputation for the snipe pipeline.
package service

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/buidlcat/friendrekt/analyzer"
	"github.com/buidlcat/friendrekt/api"
	"github.com/buidlcat/friendrekt/models"
	"github.com/buidlcat/friendrekt/utils"
)

// IdentityLookup resolves the social identity linked to a wallet.
type IdentityLookup interface {
	LookupUser(ctx context.Context, addr common.Address) (*api.Identity, error)
}

// FollowerLookup returns the follower count of an external user id.
type FollowerLookup interface {
	FollowerCount(ctx context.Context, userID string) (uint64, error)
}

// BatchCache memoizes reputation records for the transactions of a single block.
// It is shared by every handler spawned for that block and discarded afterwards.
type BatchCache struct {
	mu      sync.Mutex
	records map[common.Address]models.ReputationRecord
}

// NewBatchCache creates an empty cache.
func NewBatchCache() *BatchCache {
	return &BatchCache{records: make(map[common.Address]models.ReputationRecord)}
}

// Get returns the cached record for addr.
func (c *BatchCache) Get(addr common.Address) (models.ReputationRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[addr]
	return rec, ok
}

// Put stores rec unless a record for the same address is already present, and
// returns whichever record the cache holds afterwards.
func (c *BatchCache) Put(rec models.ReputationRecord) models.ReputationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.records[rec.Address]; ok {
		return existing
	}
	c.records[rec.Address] = rec
	return rec
}

// Len returns the number of cached records.
func (c *BatchCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Enricher turns a wallet address into a ReputationRecord.
type Enricher struct {
	identity  IdentityLookup
	followers FollowerLookup
	limit     func(followers uint64) uint64
	logger    *zap.Logger
}

// NewEnricher creates an enricher. The acquisition limit comes from analyzer.Decide.
func NewEnricher(identity IdentityLookup, followers FollowerLookup, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		identity:  identity,
		followers: followers,
		limit:     analyzer.Decide,
		logger:    logger.Named("enricher"),
	}
}

// Resolve returns the reputation for addr, consulting cache first. It reports false
// when the identity lookup fails; nothing is cached in that case. A failed follower
// lookup yields a record with zero followers.
//
// The cache lock is never held across a network call, so two handlers resolving
// the same unseen address may both query; the first insert wins.
func (e *Enricher) Resolve(ctx context.Context, cache *BatchCache, addr common.Address) (models.ReputationRecord, bool) {
	if cache != nil {
		if rec, ok := cache.Get(addr); ok {
			return rec, true
		}
	}

	user, err := e.identity.LookupUser(ctx, addr)
	if err != nil {
		e.logger.Debug("identity lookup failed",
			zap.String("address", utils.ShortHex(addr)),
			zap.Error(err))
		return models.ReputationRecord{}, false
	}

	followers, err := e.followers.FollowerCount(ctx, user.TwitterUserID)
	if err != nil {
		e.logger.Warn("follower lookup failed",
			zap.String("username", user.TwitterUsername),
			zap.String("user_id", user.TwitterUserID),
			zap.Error(err))
		followers = 0
	}

	rec := models.ReputationRecord{
		Address:          addr,
		Username:         user.TwitterUsername,
		ExternalID:       user.TwitterUserID,
		Followers:        followers,
		AcquisitionLimit: e.limit(followers),
	}
	if cache != nil {
		rec = cache.Put(rec)
	}
	return rec, true
}
