// Package analyzer classifies observed transactions and turns reputation into
// acquisition decisions. Everything here is pure: no network, no shared state.
package analyzer

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/buidlcat/friendrekt/models"
)

// Kind is the classification of one transaction.
type Kind int

const (
	KindIgnored Kind = iota
	KindBuyAction
	KindRelayMessage
	KindPlainTransfer
)

func (k Kind) String() string {
	switch k {
	case KindBuyAction:
		return "buy_action"
	case KindRelayMessage:
		return "relay_message"
	case KindPlainTransfer:
		return "plain_transfer"
	default:
		return "ignored"
	}
}

// buyCallLen is selector + (address subject, uint256 amount).
const buyCallLen = 4 + 64

var (
	// BuySelector is buyShares(address,uint256).
	BuySelector = []byte{0x69, 0x45, 0xb1, 0x23}
	// RelaySelector is relayMessage(uint256,address,address,uint256,uint256,bytes).
	RelaySelector = []byte{0xd7, 0x64, 0xad, 0x0b}
)

// Classification is the Selector's verdict. Subject is only set for buy actions.
type Classification struct {
	Kind    Kind
	Subject common.Address
}

// Classify maps a transaction to its pipeline kind. shares is the tracked shares
// contract; value-bearing buys are only accepted when sent to it.
func Classify(tx *models.Transaction, shares common.Address) Classification {
	input := tx.Input

	switch {
	case bytes.HasPrefix(input, BuySelector):
		if !isBuyAction(tx, shares) {
			return Classification{Kind: KindIgnored}
		}
		return Classification{
			Kind:    KindBuyAction,
			Subject: common.BytesToAddress(input[16:36]),
		}
	case bytes.HasPrefix(input, RelaySelector):
		return Classification{Kind: KindRelayMessage}
	case len(input) == 0:
		return Classification{Kind: KindPlainTransfer}
	}
	return Classification{Kind: KindIgnored}
}

func isBuyAction(tx *models.Transaction, shares common.Address) bool {
	if len(tx.Input) != buyCallLen {
		return false
	}
	if tx.To == nil {
		return false
	}
	if tx.Type != types.DynamicFeeTxType {
		return false
	}
	if tx.HasValue() && *tx.To != shares {
		return false
	}
	return true
}
