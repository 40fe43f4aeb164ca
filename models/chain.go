package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Head is a new-block notification from the node.
type Head struct {
	Hash   common.Hash
	Number uint64
}

// Block is a fetched block with its full transaction list.
type Block struct {
	Hash         common.Hash
	Number       uint64
	Transactions []*Transaction
}

// Transaction is an observed transaction. Fee fields are nil when the node did not
// report them (legacy and deposit transactions).
type Transaction struct {
	Hash                 common.Hash
	From                 common.Address
	To                   *common.Address // nil for contract creation
	Value                *big.Int
	Input                []byte
	Type                 uint8
	Nonce                uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// HasValue reports whether the transaction carries a non-zero value.
func (tx *Transaction) HasValue() bool {
	return tx.Value != nil && tx.Value.Sign() != 0
}

// Log is the subset of a receipt log the pipeline inspects.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Receipt is a transaction receipt reduced to its logs.
type Receipt struct {
	TxHash common.Hash
	Status uint64
	Logs   []Log
}
