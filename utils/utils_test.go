package utils

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0x1234...5678", ShortAddress("0x1234aaaaaaaaaaaaaaaa5678"))
	assert.Equal(t, "0x12", ShortAddress("0x12"))
	assert.Equal(t, "0x0000...0042", ShortHex(common.HexToAddress("0x42")))
}

func TestIsHexAddress(t *testing.T) {
	assert.True(t, IsHexAddress("0x0000000000000000000000000000000000000042"))
	assert.False(t, IsHexAddress("0000000000000000000000000000000000000042"))
	assert.False(t, IsHexAddress("0x42"))
}

func TestWeiToEth(t *testing.T) {
	assert.Equal(t, "1.000000", WeiToEth(big.NewInt(1_000_000_000_000_000_000)))
	assert.Equal(t, "0.500000", WeiToEth(big.NewInt(500_000_000_000_000_000)))
	assert.Equal(t, "0", WeiToEth(nil))
}
