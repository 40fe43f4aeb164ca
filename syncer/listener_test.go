package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/buidlcat/friendrekt/api"
	"github.com/buidlcat/friendrekt/models"
)

type fakeHeads struct {
	heads    chan models.Head
	errs     chan error
	startErr error
	stopped  chan struct{}
	once     sync.Once
}

func newFakeHeads() *fakeHeads {
	return &fakeHeads{
		heads:   make(chan models.Head),
		errs:    make(chan error, 1),
		stopped: make(chan struct{}),
	}
}

func (f *fakeHeads) Start(ctx context.Context) error { return f.startErr }
func (f *fakeHeads) Heads() <-chan models.Head       { return f.heads }
func (f *fakeHeads) Err() <-chan error               { return f.errs }
func (f *fakeHeads) Stop()                           { f.once.Do(func() { close(f.stopped) }) }

type fakeBlocks struct {
	blocks map[common.Hash]*models.Block
}

func (f *fakeBlocks) BlockByHash(ctx context.Context, hash common.Hash) (*models.Block, error) {
	if b, ok := f.blocks[hash]; ok {
		return b, nil
	}
	return nil, api.ErrNotFound
}

type recordingDispatcher struct {
	mu     sync.Mutex
	blocks []uint64
	got    chan struct{}
}

func (r *recordingDispatcher) DispatchBlock(ctx context.Context, block *models.Block) *Batch {
	r.mu.Lock()
	r.blocks = append(r.blocks, block.Number)
	r.mu.Unlock()
	r.got <- struct{}{}
	return &Batch{Block: block.Number, metrics: NewMetrics(), start: time.Now()}
}

func (r *recordingDispatcher) numbers() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.blocks...)
}

func TestListener_SkipsUnfetchableBlocksAndKeepsOrder(t *testing.T) {
	heads := newFakeHeads()
	blocks := &fakeBlocks{blocks: map[common.Hash]*models.Block{
		common.HexToHash("0x01"): {Number: 1},
		common.HexToHash("0x03"): {Number: 3},
	}}
	disp := &recordingDispatcher{got: make(chan struct{}, 4)}
	metrics := NewMetrics()
	l := NewListener(heads, blocks, disp, time.Second, metrics, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	heads.heads <- models.Head{Hash: common.HexToHash("0x01"), Number: 1}
	heads.heads <- models.Head{Hash: common.HexToHash("0x02"), Number: 2}
	heads.heads <- models.Head{Hash: common.HexToHash("0x03"), Number: 3}

	for i := 0; i < 2; i++ {
		select {
		case <-disp.got:
		case <-time.After(2 * time.Second):
			t.Fatal("block not dispatched")
		}
	}

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []uint64{1, 3}, disp.numbers())
	assert.Equal(t, int64(1), metrics.Snapshot().BlockFetchFailed)
	<-heads.stopped
}

func TestListener_SubscriptionTerminationIsFatal(t *testing.T) {
	heads := newFakeHeads()
	l := NewListener(heads, &fakeBlocks{}, &recordingDispatcher{got: make(chan struct{}, 1)}, time.Second, nil, zaptest.NewLogger(t))

	heads.errs <- api.ErrSubscriptionClosed

	err := l.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrSubscriptionClosed))
}

func TestListener_StartFailure(t *testing.T) {
	heads := newFakeHeads()
	heads.startErr = errors.New("dial refused")
	l := NewListener(heads, &fakeBlocks{}, &recordingDispatcher{}, time.Second, nil, zaptest.NewLogger(t))

	err := l.Run(context.Background())
	assert.ErrorContains(t, err, "dial refused")
}
