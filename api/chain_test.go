package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcStub answers JSON-RPC calls from a method → raw result table.
func rpcStub(t *testing.T, results map[string]string) *ChainClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)

	c, err := DialChain(context.Background(), srv.URL)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

const blockJSON = `{
	"hash": "0x1111111111111111111111111111111111111111111111111111111111111111",
	"number": "0x10",
	"transactions": [
		{
			"hash": "0x2222222222222222222222222222222222222222222222222222222222222222",
			"from": "0x00000000000000000000000000000000000000aa",
			"to": "0xcf205808ed36593aa40a44f10c7f7c2f67d4a4d4",
			"value": "0x0",
			"input": "0x6945b123",
			"type": "0x2",
			"nonce": "0x7",
			"maxFeePerGas": "0x3b9aca00",
			"maxPriorityFeePerGas": "0x5f5e100"
		},
		{
			"hash": "0x3333333333333333333333333333333333333333333333333333333333333333",
			"from": "0xdeaddeaddeaddeaddeaddeaddeaddeaddead0001",
			"to": "0x4200000000000000000000000000000000000015",
			"input": "0x015d8eb9",
			"type": "0x7e",
			"nonce": "0x0"
		}
	]
}`

func TestChainClient_BlockByHash(t *testing.T) {
	c := rpcStub(t, map[string]string{"eth_getBlockByHash": blockJSON})

	block, err := c.BlockByHash(context.Background(), common.HexToHash("0x11"))
	require.NoError(t, err)

	assert.Equal(t, uint64(16), block.Number)
	require.Len(t, block.Transactions, 2)

	buy := block.Transactions[0]
	assert.Equal(t, uint8(2), buy.Type)
	assert.Equal(t, uint64(7), buy.Nonce)
	assert.Equal(t, int64(1_000_000_000), buy.MaxFeePerGas.Int64())
	assert.Equal(t, int64(100_000_000), buy.MaxPriorityFeePerGas.Int64())
	assert.False(t, buy.HasValue())
	assert.Equal(t, []byte{0x69, 0x45, 0xb1, 0x23}, buy.Input)

	deposit := block.Transactions[1]
	assert.Equal(t, uint8(0x7e), deposit.Type)
	assert.NotNil(t, deposit.Value)
	assert.Nil(t, deposit.MaxFeePerGas)
}

func TestChainClient_BlockNotFound(t *testing.T) {
	c := rpcStub(t, map[string]string{"eth_getBlockByHash": "null"})

	_, err := c.BlockByHash(context.Background(), common.HexToHash("0x11"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestChainClient_TransactionReceipt(t *testing.T) {
	c := rpcStub(t, map[string]string{"eth_getTransactionReceipt": `{
		"transactionHash": "0x2222222222222222222222222222222222222222222222222222222222222222",
		"status": "0x1",
		"logs": [{
			"address": "0x4200000000000000000000000000000000000010",
			"topics": ["0xb0444523268717a02698be47d0803aa7468c00acbed2f8bd93a0459cde61dd89"],
			"data": "0x000000000000000000000000000000000000000000000000000000000000beef"
		}]
	}`})

	rec, err := c.TransactionReceipt(context.Background(), common.HexToHash("0x22"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Status)
	require.Len(t, rec.Logs, 1)
	assert.Len(t, rec.Logs[0].Data, 32)
	assert.Equal(t, common.HexToHash("0xb0444523268717a02698be47d0803aa7468c00acbed2f8bd93a0459cde61dd89"), rec.Logs[0].Topics[0])
}

func TestChainClient_PendingNonceAndChainID(t *testing.T) {
	c := rpcStub(t, map[string]string{
		"eth_getTransactionCount": `"0x2a"`,
		"eth_chainId":             `"0x2105"`,
	})

	nonce, err := c.PendingNonceAt(context.Background(), common.HexToAddress("0xaa"))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), nonce)

	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8453), id.Int64())
}

func TestChainClient_RPCError(t *testing.T) {
	c := rpcStub(t, map[string]string{})

	_, err := c.TransactionByHash(context.Background(), common.HexToHash("0x22"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
