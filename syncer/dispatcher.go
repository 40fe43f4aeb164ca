package syncer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/buidlcat/friendrekt/analyzer"
	"github.com/buidlcat/friendrekt/models"
	"github.com/buidlcat/friendrekt/service"
	"github.com/buidlcat/friendrekt/utils"
)

// DepositTopic is topic0 of the bridge deposit event emitted alongside relayed
// messages. The depositor is the last 20 bytes of the first data word.
var DepositTopic = common.HexToHash("0xb0444523268717a02698be47d0803aa7468c00acbed2f8bd93a0459cde61dd89")

// ReceiptFetcher loads a transaction receipt.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*models.Receipt, error)
}

// Resolver turns an address into a reputation record through a batch cache.
type Resolver interface {
	Resolve(ctx context.Context, cache *service.BatchCache, addr common.Address) (models.ReputationRecord, bool)
}

// Sniper submits one snipe for a trigger.
type Sniper interface {
	Snipe(ctx context.Context, trigger *models.Transaction, amount, limit uint64) (*Submission, error)
}

// SnipeRecorder persists submission attempts.
type SnipeRecorder interface {
	SaveSnipe(ctx context.Context, rec *models.SnipeRecord) error
}

// DispatcherConfig tunes the per-transaction fan-out.
type DispatcherConfig struct {
	Shares           common.Address
	DedupCapacity    int
	Workers          int
	QueueSize        int
	PrewarmRelay     bool
	PrewarmTransfers bool
	ReceiptTimeout   time.Duration
}

// Dispatcher fans a block's transactions out to a bounded worker pool and runs each
// through classify → enrich → decide → submit.
type Dispatcher struct {
	cfg      DispatcherConfig
	seen     *FIFOSet
	pool     pond.Pool
	enricher Resolver
	engine   *analyzer.Engine
	sniper   Sniper
	receipts ReceiptFetcher
	store    SnipeRecorder
	metrics  *Metrics
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. receipts and store may be nil; relay pre-warm
// and snipe persistence are then skipped.
func NewDispatcher(cfg DispatcherConfig, enricher Resolver, engine *analyzer.Engine, sniper Sniper,
	receipts ReceiptFetcher, store SnipeRecorder, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 64
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 10 * time.Second
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		cfg:  cfg,
		seen: NewFIFOSet(cfg.DedupCapacity),
		pool: pond.NewPool(cfg.Workers,
			pond.WithQueueSize(cfg.QueueSize),
			pond.WithNonBlocking(true),
		),
		enricher: enricher,
		engine:   engine,
		sniper:   sniper,
		receipts: receipts,
		store:    store,
		metrics:  metrics,
		logger:   logger.Named("dispatcher"),
	}
}

// Batch tracks the handlers spawned for one block and owns its reputation cache.
type Batch struct {
	Block    uint64
	Queued   int
	Dropped  int
	Rejected int

	cache   *service.BatchCache
	wg      sync.WaitGroup
	start   time.Time
	metrics *Metrics
}

// Wait blocks until every handler of the batch finished, then discards the cache.
func (b *Batch) Wait() {
	b.wg.Wait()
	if b.cache != nil {
		b.metrics.BatchCacheSize.Observe(float64(b.cache.Len()))
		b.cache = nil
	}
	b.metrics.BlockHandleTime.Observe(time.Since(b.start).Seconds())
}

// DispatchBlock submits every transaction of block to the pool and returns without
// waiting. Transactions that do not fit in the queue are dropped.
func (d *Dispatcher) DispatchBlock(ctx context.Context, block *models.Block) *Batch {
	b := &Batch{
		Block:   block.Number,
		cache:   service.NewBatchCache(),
		start:   time.Now(),
		metrics: d.metrics,
	}
	d.metrics.blockDispatched()

	cache := b.cache
	for _, tx := range block.Transactions {
		b.wg.Add(1)
		err := d.pool.Go(func() {
			defer b.wg.Done()
			d.handle(ctx, cache, tx)
		})
		if err != nil {
			b.wg.Done()
			if errors.Is(err, pond.ErrQueueFull) {
				b.Dropped++
				d.metrics.txDroppedFull()
				continue
			}
			b.Rejected++
			d.metrics.txRejected()
			d.logger.Warn("submit to pool failed", zap.String("tx", tx.Hash.Hex()), zap.Error(err))
			continue
		}
		b.Queued++
	}

	if b.Dropped > 0 {
		d.logger.Warn("worker queue full, transactions dropped",
			zap.Uint64("block", block.Number),
			zap.Int("dropped", b.Dropped),
			zap.Int("queued", b.Queued))
	}
	return b
}

// Stop waits for running handlers and shuts the pool down.
func (d *Dispatcher) Stop() {
	d.pool.StopAndWait()
}

// Seen exposes the dedup set.
func (d *Dispatcher) Seen() *FIFOSet {
	return d.seen
}

func (d *Dispatcher) handle(ctx context.Context, cache *service.BatchCache, tx *models.Transaction) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.handlerPanicked()
			d.logger.Error("handler panic",
				zap.String("tx", tx.Hash.Hex()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	if !d.seen.Observe(tx.Hash) {
		d.metrics.txDuplicated()
		return
	}

	class := analyzer.Classify(tx, d.cfg.Shares)
	d.metrics.txObserved(class.Kind.String())

	switch class.Kind {
	case analyzer.KindBuyAction:
		d.handleBuy(ctx, cache, tx, class.Subject)
	case analyzer.KindRelayMessage:
		if d.cfg.PrewarmRelay {
			d.handleRelay(ctx, cache, tx)
		}
	case analyzer.KindPlainTransfer:
		if d.cfg.PrewarmTransfers {
			d.handleTransfer(ctx, cache, tx)
		}
	}
}

func (d *Dispatcher) handleBuy(ctx context.Context, cache *service.BatchCache, tx *models.Transaction, subject common.Address) {
	rec, ok := d.enricher.Resolve(ctx, cache, tx.From)
	d.metrics.enrichment(ok)
	if !ok {
		d.logger.Debug("no identity for buyer", zap.String("from", utils.ShortHex(tx.From)))
		return
	}

	decision := d.engine.Evaluate(rec)
	if !decision.Act() {
		return
	}
	d.metrics.decided()

	d.logger.Info("buy on a worthy subject",
		zap.String("trigger", tx.Hash.Hex()),
		zap.String("sender", tx.From.Hex()),
		zap.String("subject", subject.Hex()),
		zap.String("username", rec.Username),
		zap.Uint64("followers", rec.Followers),
		zap.Uint64("limit", decision.Limit),
		zap.String("reference_price_eth", utils.WeiToEth(decision.ReferencePrice)))

	sub, err := d.sniper.Snipe(ctx, tx, decision.Amount, decision.Limit)
	if err != nil {
		d.logger.Warn("snipe not built", zap.String("trigger", tx.Hash.Hex()), zap.Error(err))
		return
	}
	d.metrics.submission(sub.OK, sub.Latency)

	d.record(ctx, tx, rec, decision, sub)
}

func (d *Dispatcher) record(ctx context.Context, tx *models.Transaction, rec models.ReputationRecord,
	decision analyzer.Decision, sub *Submission) {
	if d.store == nil {
		return
	}

	entry := &models.SnipeRecord{
		TriggerHash:      tx.Hash.Hex(),
		TxHash:           sub.Hash,
		Subject:          tx.From.Hex(),
		Username:         rec.Username,
		ExternalID:       rec.ExternalID,
		Followers:        rec.Followers,
		AcquisitionLimit: decision.Limit,
		Amount:           decision.Amount,
		ReferencePrice:   utils.BigString(decision.ReferencePrice),
		Nonce:            sub.Request.Nonce,
		MaxFeePerGas:     utils.BigString(sub.Request.MaxFeePerGas),
		MaxPriorityFee:   utils.BigString(sub.Request.MaxPriorityFeePerGas),
		Success:          sub.OK,
		LatencyMs:        sub.Latency.Milliseconds(),
		CreatedAt:        time.Now(),
	}
	if err := d.store.SaveSnipe(ctx, entry); err != nil {
		d.logger.Warn("snipe audit write failed", zap.String("trigger", entry.TriggerHash), zap.Error(err))
	}
}

// handleRelay resolves the depositor of a relayed message into the batch cache.
func (d *Dispatcher) handleRelay(ctx context.Context, cache *service.BatchCache, tx *models.Transaction) {
	if d.receipts == nil {
		return
	}

	rctx, cancel := context.WithTimeout(ctx, d.cfg.ReceiptTimeout)
	receipt, err := d.receipts.TransactionReceipt(rctx, tx.Hash)
	cancel()
	if err != nil {
		d.logger.Debug("relay receipt unavailable", zap.String("tx", tx.Hash.Hex()), zap.Error(err))
		return
	}

	addr, ok := Depositor(receipt)
	if !ok {
		return
	}
	if _, cached := cache.Get(addr); cached {
		return
	}

	if rec, ok := d.enricher.Resolve(ctx, cache, addr); ok {
		d.logger.Debug("pre-warmed relay depositor",
			zap.String("address", addr.Hex()),
			zap.String("username", rec.Username),
			zap.Uint64("followers", rec.Followers))
	}
}

// handleTransfer resolves both ends of a plain transfer into the batch cache.
func (d *Dispatcher) handleTransfer(ctx context.Context, cache *service.BatchCache, tx *models.Transaction) {
	addrs := []common.Address{tx.From}
	if tx.To != nil && *tx.To != tx.From {
		addrs = append(addrs, *tx.To)
	}
	for _, addr := range addrs {
		if _, cached := cache.Get(addr); cached {
			continue
		}
		d.enricher.Resolve(ctx, cache, addr)
	}
}

// Depositor finds the first deposit event in a receipt and extracts its address.
func Depositor(receipt *models.Receipt) (common.Address, bool) {
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 || l.Topics[0] != DepositTopic {
			continue
		}
		if len(l.Data) < 32 {
			return common.Address{}, false
		}
		return common.BytesToAddress(l.Data[12:32]), true
	}
	return common.Address{}, false
}

// String implements fmt.Stringer for log output.
func (b *Batch) String() string {
	if b.Rejected > 0 {
		return fmt.Sprintf("block %d: %d queued, %d dropped, %d rejected", b.Block, b.Queued, b.Dropped, b.Rejected)
	}
	return fmt.Sprintf("block %d: %d queued, %d dropped", b.Block, b.Queued, b.Dropped)
}
