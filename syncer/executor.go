package syncer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/buidlcat/friendrekt/models"
	"github.com/buidlcat/friendrekt/utils"
)

// SniperABI is the slice of the sniper contract interface the executor calls.
const SniperABI = `[{
	"type": "function",
	"name": "doSnipeManyShares",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "sharesSubjects", "type": "address[]"},
		{"name": "amounts", "type": "uint256[]"},
		{"name": "supplyLimits", "type": "uint256[]"}
	],
	"outputs": []
}]`

const snipeMethod = "doSnipeManyShares"

// DefaultGasLimit is the fixed gas limit of a snipe transaction.
const DefaultGasLimit uint64 = 1_000_000

// ErrMissingFees is returned when the trigger carries no EIP-1559 fee fields to mirror.
var ErrMissingFees = errors.New("trigger has no dynamic fee fields")

// Broadcaster submits a signed raw transaction and returns its hash.
type Broadcaster interface {
	SendRawTransaction(ctx context.Context, rawTx string) (string, bool)
}

// ExecutorConfig holds the signing identity and target of the executor.
type ExecutorConfig struct {
	PrivateKey string // hex, with or without 0x
	Sniper     common.Address
	ChainID    *big.Int
	GasLimit   uint64
}

// Executor builds, signs and broadcasts snipe transactions (critical path).
type Executor struct {
	key         *ecdsa.PrivateKey
	from        common.Address
	sniper      common.Address
	chainID     *big.Int
	signer      types.Signer
	abi         abi.ABI
	gasLimit    uint64
	nonces      *NonceTracker
	broadcaster Broadcaster
	logger      *zap.Logger
}

// Submission is the outcome of one snipe attempt.
type Submission struct {
	Request *models.SubmissionRequest
	Hash    string
	OK      bool
	Latency time.Duration
}

// ParsePrivateKey decodes a hex private key.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("executor: parse private key: %w", err)
	}
	return key, nil
}

// NewExecutor creates an executor. nonces must track the key's account.
func NewExecutor(cfg ExecutorConfig, nonces *NonceTracker, broadcaster Broadcaster, logger *zap.Logger) (*Executor, error) {
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("executor: chain id is required")
	}
	if nonces == nil || broadcaster == nil {
		return nil, fmt.Errorf("executor: nonce tracker and broadcaster are required")
	}

	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	parsed, err := abi.JSON(strings.NewReader(SniperABI))
	if err != nil {
		return nil, fmt.Errorf("executor: parse abi: %w", err)
	}

	gas := cfg.GasLimit
	if gas == 0 {
		gas = DefaultGasLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Executor{
		key:         key,
		from:        crypto.PubkeyToAddress(key.PublicKey),
		sniper:      cfg.Sniper,
		chainID:     new(big.Int).Set(cfg.ChainID),
		signer:      types.LatestSignerForChainID(cfg.ChainID),
		abi:         parsed,
		gasLimit:    gas,
		nonces:      nonces,
		broadcaster: broadcaster,
		logger:      logger.Named("executor"),
	}
	e.logger.Info("executor ready",
		zap.String("from", e.from.Hex()),
		zap.String("sniper", e.sniper.Hex()),
		zap.String("chain_id", e.chainID.String()))
	return e, nil
}

// From returns the signing account.
func (e *Executor) From() common.Address {
	return e.from
}

// Calldata encodes doSnipeManyShares([subject], [amount], [limit]).
func (e *Executor) Calldata(subject common.Address, amount, limit uint64) ([]byte, error) {
	return e.abi.Pack(snipeMethod,
		[]common.Address{subject},
		[]*big.Int{new(big.Int).SetUint64(amount)},
		[]*big.Int{new(big.Int).SetUint64(limit)},
	)
}

// BuildRequest assembles the submission for a trigger. Fee fields are copied from
// the trigger so the snipe competes for the same block.
func (e *Executor) BuildRequest(trigger *models.Transaction, amount, limit, nonce uint64) (*models.SubmissionRequest, error) {
	if trigger.MaxFeePerGas == nil || trigger.MaxPriorityFeePerGas == nil {
		return nil, ErrMissingFees
	}

	data, err := e.Calldata(trigger.From, amount, limit)
	if err != nil {
		return nil, fmt.Errorf("executor: pack calldata: %w", err)
	}

	return &models.SubmissionRequest{
		To:                   e.sniper,
		Data:                 data,
		Nonce:                nonce,
		Gas:                  e.gasLimit,
		MaxFeePerGas:         new(big.Int).Set(trigger.MaxFeePerGas),
		MaxPriorityFeePerGas: new(big.Int).Set(trigger.MaxPriorityFeePerGas),
		ChainID:              e.chainID,
	}, nil
}

// Sign produces the signed dynamic-fee transaction for req.
func (e *Executor) Sign(req *models.SubmissionRequest) (*types.Transaction, error) {
	to := req.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   req.ChainID,
		Nonce:     req.Nonce,
		GasTipCap: req.MaxPriorityFeePerGas,
		GasFeeCap: req.MaxFeePerGas,
		Gas:       req.Gas,
		To:        &to,
		Value:     new(big.Int),
		Data:      req.Data,
	})
	signed, err := types.SignTx(tx, e.signer, e.key)
	if err != nil {
		return nil, fmt.Errorf("executor: sign: %w", err)
	}
	return signed, nil
}

// Snipe builds, signs and broadcasts one snipe for trigger. It never retries; a
// failed broadcast releases the nonce.
func (e *Executor) Snipe(ctx context.Context, trigger *models.Transaction, amount, limit uint64) (*Submission, error) {
	start := time.Now()

	if trigger.MaxFeePerGas == nil || trigger.MaxPriorityFeePerGas == nil {
		return nil, ErrMissingFees
	}

	nonce := e.nonces.Reserve(ctx)

	req, err := e.BuildRequest(trigger, amount, limit, nonce)
	if err != nil {
		e.nonces.Release(nonce)
		return nil, err
	}

	signed, err := e.Sign(req)
	if err != nil {
		e.nonces.Release(nonce)
		return nil, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		e.nonces.Release(nonce)
		return nil, fmt.Errorf("executor: encode: %w", err)
	}

	hash, ok := e.broadcaster.SendRawTransaction(ctx, hexutil.Encode(raw))
	sub := &Submission{Request: req, Hash: hash, OK: ok, Latency: time.Since(start)}

	if !ok {
		e.nonces.Release(nonce)
		e.logger.Warn("snipe broadcast failed",
			zap.String("trigger", trigger.Hash.Hex()),
			zap.String("sender", utils.ShortHex(trigger.From)),
			zap.Uint64("nonce", nonce))
		return sub, nil
	}

	e.logger.Info("snipe sent",
		zap.String("tx", hash),
		zap.String("trigger", trigger.Hash.Hex()),
		zap.String("sender", trigger.From.Hex()),
		zap.Uint64("limit", limit),
		zap.Uint64("nonce", nonce),
		zap.Duration("latency", sub.Latency))
	return sub, nil
}
