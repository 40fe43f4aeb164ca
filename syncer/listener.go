package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/buidlcat/friendrekt/models"
)

// HeadSource delivers new-block notifications.
type HeadSource interface {
	Start(ctx context.Context) error
	Heads() <-chan models.Head
	Err() <-chan error
	Stop()
}

// BlockFetcher loads a block with its transactions.
type BlockFetcher interface {
	BlockByHash(ctx context.Context, hash common.Hash) (*models.Block, error)
}

// BlockDispatcher accepts fetched blocks.
type BlockDispatcher interface {
	DispatchBlock(ctx context.Context, block *models.Block) *Batch
}

// Listener consumes head notifications in arrival order and hands each fetched
// block to the dispatcher.
type Listener struct {
	heads        HeadSource
	blocks       BlockFetcher
	dispatcher   BlockDispatcher
	fetchTimeout time.Duration
	metrics      *Metrics
	logger       *zap.Logger
}

// NewListener creates a listener.
func NewListener(heads HeadSource, blocks BlockFetcher, dispatcher BlockDispatcher,
	fetchTimeout time.Duration, metrics *Metrics, logger *zap.Logger) *Listener {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		heads:        heads,
		blocks:       blocks,
		dispatcher:   dispatcher,
		fetchTimeout: fetchTimeout,
		metrics:      metrics,
		logger:       logger.Named("listener"),
	}
}

// Run blocks until ctx is cancelled (returns nil) or the head subscription
// terminates (returns the subscription error). A block that cannot be fetched is
// skipped.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.heads.Start(ctx); err != nil {
		return fmt.Errorf("listener: subscribe: %w", err)
	}
	defer l.heads.Stop()

	l.logger.Info("listening for new blocks")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("listener stopped")
			return nil

		case err := <-l.heads.Err():
			return fmt.Errorf("listener: %w", err)

		case head, ok := <-l.heads.Heads():
			if !ok {
				return fmt.Errorf("listener: head stream closed")
			}
			l.processHead(ctx, head)
		}
	}
}

func (l *Listener) processHead(ctx context.Context, head models.Head) {
	fctx, cancel := context.WithTimeout(ctx, l.fetchTimeout)
	block, err := l.blocks.BlockByHash(fctx, head.Hash)
	cancel()
	if err != nil {
		l.metrics.blockFetchFailed()
		l.logger.Warn("block fetch failed, skipping",
			zap.String("hash", head.Hash.Hex()),
			zap.Uint64("number", head.Number),
			zap.Error(err))
		return
	}

	batch := l.dispatcher.DispatchBlock(ctx, block)
	l.logger.Debug("block dispatched",
		zap.Stringer("batch", batch),
		zap.Int("txs", len(block.Transactions)))

	go batch.Wait()
}
