package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
)

// DefaultSequencerURL is Base mainnet's sequencer, which accepts raw transactions
// directly and skips peer-to-peer propagation.
const DefaultSequencerURL = "https://mainnet-sequencer.base.org/"

type rpcRequest struct {
	JSONRPC string   `json:"jsonrpc"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
	ID      int      `json:"id"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Result  *string   `json:"result"`
	Error   *RPCError `json:"error"`
}

// SequencerClient broadcasts signed transactions over a single JSON-RPC POST.
type SequencerClient struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSequencerClient creates a broadcaster for url.
func NewSequencerClient(url string, timeout time.Duration, logger *zap.Logger) *SequencerClient {
	if url == "" {
		url = DefaultSequencerURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SequencerClient{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		logger: logger.Named("sequencer"),
	}
}

// SendRawTransaction submits a 0x-prefixed signed transaction and returns the
// transaction hash. The boolean is false on any failure; failures are logged here and
// never returned.
func (c *SequencerClient) SendRawTransaction(ctx context.Context, rawTx string) (string, bool) {
	payload, err := sonnet.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_sendRawTransaction",
		Params:  []string{rawTx},
		ID:      1,
	})
	if err != nil {
		c.logger.Warn("encode request failed", zap.Error(err))
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		c.logger.Warn("build request failed", zap.Error(err))
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("broadcast failed", zap.Error(err))
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("broadcast rejected", zap.Int("status", resp.StatusCode))
		return "", false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("read broadcast response failed", zap.Error(err))
		return "", false
	}

	var out rpcResponse
	if err := sonnet.Unmarshal(body, &out); err != nil {
		c.logger.Warn("malformed broadcast response", zap.Error(err))
		return "", false
	}

	switch {
	case out.Result != nil && *out.Result != "":
		return *out.Result, true
	case out.Error != nil:
		c.logger.Warn("broadcast error",
			zap.Int("code", out.Error.Code),
			zap.String("message", out.Error.Message))
	default:
		c.logger.Warn("broadcast response has neither result nor error")
	}
	return "", false
}
