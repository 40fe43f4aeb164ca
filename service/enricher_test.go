package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/buidlcat/friendrekt/api"
	"github.com/buidlcat/friendrekt/models"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func newFixture(t *testing.T) (*Enricher, *api.MockReputationClient) {
	rep := api.NewMockReputationClient()
	rep.AddUser(alice, "alice", "111", 2_000_000)
	return NewEnricher(rep, rep, zaptest.NewLogger(t)), rep
}

func TestEnricher_Resolve(t *testing.T) {
	e, _ := newFixture(t)

	rec, ok := e.Resolve(context.Background(), NewBatchCache(), alice)
	require.True(t, ok)
	assert.Equal(t, models.ReputationRecord{
		Address:          alice,
		Username:         "alice",
		ExternalID:       "111",
		Followers:        2_000_000,
		AcquisitionLimit: 100,
	}, rec)
}

func TestEnricher_CacheHitMakesNoCalls(t *testing.T) {
	e, rep := newFixture(t)
	cache := NewBatchCache()
	cached := models.ReputationRecord{Address: alice, Username: "cached", Followers: 30_000, AcquisitionLimit: 30}
	cache.Put(cached)

	rec, ok := e.Resolve(context.Background(), cache, alice)
	require.True(t, ok)
	assert.Equal(t, cached, rec)
	assert.Zero(t, rep.CallCount("LookupUser"))
	assert.Zero(t, rep.CallCount("FollowerCount"))
}

func TestEnricher_SecondResolveUsesCache(t *testing.T) {
	e, rep := newFixture(t)
	cache := NewBatchCache()

	_, ok := e.Resolve(context.Background(), cache, alice)
	require.True(t, ok)
	_, ok = e.Resolve(context.Background(), cache, alice)
	require.True(t, ok)

	assert.Equal(t, 1, rep.CallCount("LookupUser"))
	assert.Equal(t, 1, rep.CallCount("FollowerCount"))
	assert.Equal(t, 1, cache.Len())
}

func TestEnricher_IdentityFailure(t *testing.T) {
	e, rep := newFixture(t)
	cache := NewBatchCache()

	_, ok := e.Resolve(context.Background(), cache, common.HexToAddress("0xbeef"))
	assert.False(t, ok)
	assert.Zero(t, rep.CallCount("FollowerCount"))
	assert.Zero(t, cache.Len(), "misses are not cached")
}

func TestEnricher_FollowerFailureYieldsZero(t *testing.T) {
	e, rep := newFixture(t)
	rep.FollowersErr = errors.New("scraper down")

	rec, ok := e.Resolve(context.Background(), NewBatchCache(), alice)
	require.True(t, ok)
	assert.Equal(t, "alice", rec.Username)
	assert.Zero(t, rec.Followers)
	assert.Zero(t, rec.AcquisitionLimit)
}

func TestEnricher_NilCache(t *testing.T) {
	e, rep := newFixture(t)

	_, ok := e.Resolve(context.Background(), nil, alice)
	require.True(t, ok)
	_, ok = e.Resolve(context.Background(), nil, alice)
	require.True(t, ok)
	assert.Equal(t, 2, rep.CallCount("LookupUser"))
}

func TestBatchCache_FirstInsertWins(t *testing.T) {
	cache := NewBatchCache()
	first := cache.Put(models.ReputationRecord{Address: alice, Followers: 1})
	second := cache.Put(models.ReputationRecord{Address: alice, Followers: 2})

	assert.Equal(t, uint64(1), first.Followers)
	assert.Equal(t, uint64(1), second.Followers)
}

func TestBatchCache_ConcurrentResolve(t *testing.T) {
	e, _ := newFixture(t)
	cache := NewBatchCache()

	var wg sync.WaitGroup
	results := make([]models.ReputationRecord, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, ok := e.Resolve(context.Background(), cache, alice)
			assert.True(t, ok)
			results[i] = rec
		}(i)
	}
	wg.Wait()

	for _, rec := range results {
		assert.Equal(t, uint64(100), rec.AcquisitionLimit)
	}
	assert.Equal(t, 1, cache.Len())
}
