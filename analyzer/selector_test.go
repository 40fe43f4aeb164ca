package analyzer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"

	"github.com/buidlcat/friendrekt/models"
)

var (
	sharesAddr = common.HexToAddress("0xCF205808Ed36593aa40a44F10c7f7C2F67d4A4d4")
	otherAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func buyInput(subject common.Address) []byte {
	input := append([]byte{}, BuySelector...)
	input = append(input, common.LeftPadBytes(subject.Bytes(), 32)...)
	return append(input, common.LeftPadBytes([]byte{1}, 32)...)
}

func buyTx(to common.Address, value int64) *models.Transaction {
	return &models.Transaction{
		Hash:  common.HexToHash("0x01"),
		From:  common.HexToAddress("0x1111111111111111111111111111111111111111"),
		To:    &to,
		Value: big.NewInt(value),
		Input: buyInput(common.HexToAddress("0x42")),
		Type:  types.DynamicFeeTxType,
	}
}

func TestClassify_BuyAction(t *testing.T) {
	tx := buyTx(sharesAddr, 0)
	assert.Len(t, tx.Input, 68)

	got := Classify(tx, sharesAddr)
	assert.Equal(t, KindBuyAction, got.Kind)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000000042"), got.Subject)
	assert.Equal(t, common.BytesToAddress(tx.Input[16:36]), got.Subject)
}

func TestClassify_BuyActionRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tx *models.Transaction)
		want   Kind
	}{
		{"zero value to any recipient", func(tx *models.Transaction) { tx.To = &otherAddr }, KindBuyAction},
		{"value to shares contract", func(tx *models.Transaction) { tx.Value = big.NewInt(1) }, KindBuyAction},
		{"value to another contract", func(tx *models.Transaction) {
			tx.To = &otherAddr
			tx.Value = big.NewInt(1)
		}, KindIgnored},
		{"nil value counts as zero", func(tx *models.Transaction) {
			tx.To = &otherAddr
			tx.Value = nil
		}, KindBuyAction},
		{"legacy transaction", func(tx *models.Transaction) { tx.Type = types.LegacyTxType }, KindIgnored},
		{"access list transaction", func(tx *models.Transaction) { tx.Type = types.AccessListTxType }, KindIgnored},
		{"missing recipient", func(tx *models.Transaction) { tx.To = nil }, KindIgnored},
		{"short call data", func(tx *models.Transaction) { tx.Input = tx.Input[:36] }, KindIgnored},
		{"long call data", func(tx *models.Transaction) { tx.Input = append(tx.Input, 0) }, KindIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := buyTx(sharesAddr, 0)
			tt.mutate(tx)
			assert.Equal(t, tt.want, Classify(tx, sharesAddr).Kind)
		})
	}
}

func TestClassify_OtherKinds(t *testing.T) {
	to := otherAddr

	relay := &models.Transaction{To: &to, Input: append(append([]byte{}, RelaySelector...), make([]byte, 200)...)}
	assert.Equal(t, KindRelayMessage, Classify(relay, sharesAddr).Kind)

	relayBare := &models.Transaction{To: &to, Input: append([]byte{}, RelaySelector...)}
	assert.Equal(t, KindRelayMessage, Classify(relayBare, sharesAddr).Kind)

	transfer := &models.Transaction{To: &to, Value: big.NewInt(1e18)}
	assert.Equal(t, KindPlainTransfer, Classify(transfer, sharesAddr).Kind)

	other := &models.Transaction{To: &to, Input: []byte{0xa9, 0x05, 0x9c, 0xbb, 0x00}}
	assert.Equal(t, KindIgnored, Classify(other, sharesAddr).Kind)

	short := &models.Transaction{To: &to, Input: []byte{0x69, 0x45}}
	assert.Equal(t, KindIgnored, Classify(short, sharesAddr).Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "buy_action", KindBuyAction.String())
	assert.Equal(t, "relay_message", KindRelayMessage.String())
	assert.Equal(t, "plain_transfer", KindPlainTransfer.String())
	assert.Equal(t, "ignored", KindIgnored.String())
}
