package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ReputationRecord is the enriched view of a wallet: its linked social identity,
// follower count and the acquisition limit derived from that count.
type ReputationRecord struct {
	Address          common.Address `json:"address"`
	Username         string         `json:"username"`
	ExternalID       string         `json:"external_id"`
	Followers        uint64         `json:"followers"`
	AcquisitionLimit uint64         `json:"acquisition_limit"`
}

// SubmissionRequest holds everything needed to build and sign one competing
// transaction. It is built once per decision and never reused.
type SubmissionRequest struct {
	To                   common.Address
	Data                 []byte
	Nonce                uint64
	Gas                  uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	ChainID              *big.Int
}

// SnipeRecord is the persisted audit entry for one submission attempt.
type SnipeRecord struct {
	ID               int64     `json:"id"`
	TriggerHash      string    `json:"trigger_hash"`
	TxHash           string    `json:"tx_hash"` // empty when the broadcast failed
	Subject          string    `json:"subject"`
	Username         string    `json:"username"`
	ExternalID       string    `json:"external_id"`
	Followers        uint64    `json:"followers"`
	AcquisitionLimit uint64    `json:"acquisition_limit"`
	Amount           uint64    `json:"amount"`
	ReferencePrice   string    `json:"reference_price_wei"`
	Nonce            uint64    `json:"nonce"`
	MaxFeePerGas     string    `json:"max_fee_per_gas"`
	MaxPriorityFee   string    `json:"max_priority_fee_per_gas"`
	Success          bool      `json:"success"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}
