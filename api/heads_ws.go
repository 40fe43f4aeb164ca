package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/buidlcat/friendrekt/models"
)

// ErrSubscriptionClosed is reported on Err when the head stream ends for good.
var ErrSubscriptionClosed = errors.New("head subscription closed")

// HeadsOptions controls the websocket subscription. With Reconnect unset a dropped
// connection is fatal.
type HeadsOptions struct {
	Reconnect     bool
	MaxReconnects int
	Backoff       time.Duration
	MaxBackoff    time.Duration
	Handshake     time.Duration
}

// HeadsWSClient subscribes to newHeads over a websocket and delivers block hashes in
// arrival order.
type HeadsWSClient struct {
	url    string
	opts   HeadsOptions
	logger *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	subID  string

	heads chan models.Head
	errCh chan error

	running  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	headsSeen  atomic.Int64
	reconnects atomic.Int64
}

// NewHeadsWSClient creates a head subscriber for a node websocket URL.
func NewHeadsWSClient(url string, opts HeadsOptions, logger *zap.Logger) *HeadsWSClient {
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.Backoff {
		opts.MaxBackoff = opts.Backoff
	}
	if opts.Handshake <= 0 {
		opts.Handshake = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeadsWSClient{
		url:    url,
		opts:   opts,
		logger: logger.Named("heads"),
		heads:  make(chan models.Head, 16),
		errCh:  make(chan error, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Heads returns the notification stream.
func (c *HeadsWSClient) Heads() <-chan models.Head {
	return c.heads
}

// Err receives exactly one error if the subscription terminates for good.
func (c *HeadsWSClient) Err() <-chan error {
	return c.errCh
}

// Stats returns the number of heads delivered and reconnects performed.
func (c *HeadsWSClient) Stats() (heads, reconnects int64) {
	return c.headsSeen.Load(), c.reconnects.Load()
}

// Start connects, subscribes and begins reading.
func (c *HeadsWSClient) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("heads client already running")
	}

	if err := c.connectAndSubscribe(ctx); err != nil {
		c.running.Store(false)
		return err
	}

	go c.closeOnDone(ctx)
	go c.readLoop(ctx)

	c.logger.Info("subscribed to newHeads", zap.String("sub_id", c.subID))
	return nil
}

// Stop closes the connection and waits for the reader to exit.
func (c *HeadsWSClient) Stop() {
	if !c.running.Load() {
		return
	}
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.connMu.Lock()
	if c.conn != nil {
		if c.subID != "" {
			_ = c.conn.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"method":  "eth_unsubscribe",
				"params":  []string{c.subID},
				"id":      2,
			})
		}
		c.conn.Close()
	}
	c.connMu.Unlock()

	select {
	case <-c.doneCh:
	case <-time.After(5 * time.Second):
		c.logger.Warn("shutdown timeout")
	}
}

func (c *HeadsWSClient) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// closeOnDone unblocks a pending read when the context ends.
func (c *HeadsWSClient) closeOnDone(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-c.stopCh:
		return
	}
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()
}

func (c *HeadsWSClient) connectAndSubscribe(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.Handshake}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("heads: dial: %w", err)
	}

	// Published before the handshake so Stop can close a connection still subscribing.
	c.connMu.Lock()
	c.conn = conn
	c.subID = ""
	c.connMu.Unlock()
	if c.stopping(ctx) {
		conn.Close()
		return ErrSubscriptionClosed
	}

	if err := conn.WriteJSON(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "eth_subscribe",
		"params":  []interface{}{"newHeads"},
		"id":      1,
	}); err != nil {
		conn.Close()
		return fmt.Errorf("heads: subscribe write: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.opts.Handshake))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("heads: subscribe read: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var resp struct {
		Result string    `json:"result"`
		Error  *RPCError `json:"error"`
	}
	if err := json.Unmarshal(msg, &resp); err != nil {
		conn.Close()
		return fmt.Errorf("heads: subscribe parse: %w", err)
	}
	if resp.Error != nil {
		conn.Close()
		return fmt.Errorf("heads: subscribe error: %s", resp.Error.Message)
	}
	if resp.Result == "" {
		conn.Close()
		return fmt.Errorf("heads: empty subscription id")
	}

	c.connMu.Lock()
	c.subID = resp.Result
	c.connMu.Unlock()
	return nil
}

func (c *HeadsWSClient) readLoop(ctx context.Context) {
	defer close(c.doneCh)

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if c.stopping(ctx) {
				return
			}
			if !c.opts.Reconnect {
				c.fail(fmt.Errorf("%w: %v", ErrSubscriptionClosed, err))
				return
			}
			c.logger.Warn("read error, reconnecting", zap.Error(err))
			if rerr := c.reconnect(ctx); rerr != nil {
				if !c.stopping(ctx) {
					c.fail(rerr)
				}
				return
			}
			continue
		}

		head, ok := c.parseNotification(msg)
		if !ok {
			continue
		}
		c.headsSeen.Add(1)

		select {
		case c.heads <- head:
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		}
	}
}

// reconnect retries with exponential backoff up to MaxReconnects attempts.
func (c *HeadsWSClient) reconnect(ctx context.Context) error {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	backoff := c.opts.Backoff
	var lastErr error
	for attempt := 1; c.opts.MaxReconnects <= 0 || attempt <= c.opts.MaxReconnects; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return ErrSubscriptionClosed
		case <-time.After(backoff):
		}

		if err := c.connectAndSubscribe(ctx); err != nil {
			lastErr = err
			c.logger.Warn("reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
			backoff *= 2
			if backoff > c.opts.MaxBackoff {
				backoff = c.opts.MaxBackoff
			}
			continue
		}
		if c.stopping(ctx) {
			c.connMu.Lock()
			c.conn.Close()
			c.connMu.Unlock()
			return ErrSubscriptionClosed
		}

		c.reconnects.Add(1)
		c.logger.Info("resubscribed to newHeads", zap.Int("attempt", attempt), zap.String("sub_id", c.subID))
		return nil
	}
	return fmt.Errorf("%w after %d reconnect attempts: %v", ErrSubscriptionClosed, c.opts.MaxReconnects, lastErr)
}

func (c *HeadsWSClient) fail(err error) {
	c.logger.Error("head subscription terminated", zap.Error(err))
	select {
	case c.errCh <- err:
	default:
	}
}

func (c *HeadsWSClient) parseNotification(data []byte) (models.Head, bool) {
	var notif struct {
		Method string `json:"method"`
		Params struct {
			Subscription string `json:"subscription"`
			Result       struct {
				Hash   common.Hash    `json:"hash"`
				Number hexutil.Uint64 `json:"number"`
			} `json:"result"`
		} `json:"params"`
	}
	if err := json.Unmarshal(data, &notif); err != nil {
		return models.Head{}, false
	}

	c.connMu.Lock()
	subID := c.subID
	c.connMu.Unlock()

	if notif.Method != "eth_subscription" || notif.Params.Subscription != subID {
		return models.Head{}, false
	}
	if notif.Params.Result.Hash == (common.Hash{}) {
		return models.Head{}, false
	}
	return models.Head{Hash: notif.Params.Result.Hash, Number: uint64(notif.Params.Result.Number)}, true
}
