// Package api provides clients for the chain node, the sequencer and the reputation
// collaborators.
package api

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/buidlcat/friendrekt/models"
)

// ErrNotFound is returned when the node has no such block, transaction or receipt.
var ErrNotFound = errors.New("not found")

// ChainClient reads blocks, receipts and account state over JSON-RPC.
//
// Blocks and receipts are decoded by hand rather than through types.Block so that
// OP-stack deposit transactions (type 0x7e) do not fail the whole block.
type ChainClient struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

// DialChain connects to a node's HTTP or websocket JSON-RPC endpoint.
func DialChain(ctx context.Context, url string) (*ChainClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", url, err)
	}
	return NewChainClient(c), nil
}

// NewChainClient wraps an existing RPC client.
func NewChainClient(c *rpc.Client) *ChainClient {
	return &ChainClient{rpc: c, eth: ethclient.NewClient(c)}
}

// Close releases the underlying connection.
func (c *ChainClient) Close() {
	c.rpc.Close()
}

type rpcTransaction struct {
	Hash                 common.Hash     `json:"hash"`
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to"`
	Value                *hexutil.Big    `json:"value"`
	Input                hexutil.Bytes   `json:"input"`
	Type                 *hexutil.Uint64 `json:"type"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
}

type rpcBlock struct {
	Hash         common.Hash       `json:"hash"`
	Number       *hexutil.Big      `json:"number"`
	Transactions []*rpcTransaction `json:"transactions"`
}

type rpcLog struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

type rpcReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	Status          hexutil.Uint64 `json:"status"`
	Logs            []rpcLog       `json:"logs"`
}

// BlockByHash fetches a block with full transaction objects.
func (c *ChainClient) BlockByHash(ctx context.Context, hash common.Hash) (*models.Block, error) {
	var raw *rpcBlock
	if err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByHash", hash, true); err != nil {
		return nil, fmt.Errorf("chain: get block %s: %w", hash.Hex(), err)
	}
	if raw == nil {
		return nil, fmt.Errorf("chain: block %s: %w", hash.Hex(), ErrNotFound)
	}

	block := &models.Block{
		Hash:         raw.Hash,
		Number:       bigToUint64(raw.Number),
		Transactions: make([]*models.Transaction, 0, len(raw.Transactions)),
	}
	for _, tx := range raw.Transactions {
		if tx == nil {
			continue
		}
		block.Transactions = append(block.Transactions, tx.toModel())
	}
	return block, nil
}

// TransactionByHash fetches a single transaction.
func (c *ChainClient) TransactionByHash(ctx context.Context, hash common.Hash) (*models.Transaction, error) {
	var raw *rpcTransaction
	if err := c.rpc.CallContext(ctx, &raw, "eth_getTransactionByHash", hash); err != nil {
		return nil, fmt.Errorf("chain: get transaction %s: %w", hash.Hex(), err)
	}
	if raw == nil {
		return nil, fmt.Errorf("chain: transaction %s: %w", hash.Hex(), ErrNotFound)
	}
	return raw.toModel(), nil
}

// TransactionReceipt fetches the receipt of a mined transaction.
func (c *ChainClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*models.Receipt, error) {
	var raw *rpcReceipt
	if err := c.rpc.CallContext(ctx, &raw, "eth_getTransactionReceipt", hash); err != nil {
		return nil, fmt.Errorf("chain: get receipt %s: %w", hash.Hex(), err)
	}
	if raw == nil {
		return nil, fmt.Errorf("chain: receipt %s: %w", hash.Hex(), ErrNotFound)
	}

	rec := &models.Receipt{
		TxHash: raw.TransactionHash,
		Status: uint64(raw.Status),
		Logs:   make([]models.Log, 0, len(raw.Logs)),
	}
	for _, l := range raw.Logs {
		rec.Logs = append(rec.Logs, models.Log{Address: l.Address, Topics: l.Topics, Data: l.Data})
	}
	return rec, nil
}

// PendingNonceAt returns the account nonce including pending transactions.
func (c *ChainClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.eth.PendingNonceAt(ctx, account)
}

// ChainID returns the chain id used for EIP-155 signing.
func (c *ChainClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

func (tx *rpcTransaction) toModel() *models.Transaction {
	out := &models.Transaction{
		Hash:                 tx.Hash,
		From:                 tx.From,
		To:                   tx.To,
		Value:                (*big.Int)(tx.Value),
		Input:                tx.Input,
		Nonce:                uint64(tx.Nonce),
		GasPrice:             (*big.Int)(tx.GasPrice),
		MaxFeePerGas:         (*big.Int)(tx.MaxFeePerGas),
		MaxPriorityFeePerGas: (*big.Int)(tx.MaxPriorityFeePerGas),
	}
	if out.Value == nil {
		out.Value = new(big.Int)
	}
	if tx.Type != nil && uint64(*tx.Type) <= 0xff {
		out.Type = uint8(*tx.Type)
	}
	return out
}

func bigToUint64(v *hexutil.Big) uint64 {
	if v == nil {
		return 0
	}
	return (*big.Int)(v).Uint64()
}
