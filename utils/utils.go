// Package utils provides shared helpers for addresses and amounts.
package utils

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// NormalizeAddress normalizes an Ethereum address to lowercase with trimmed spaces.
func NormalizeAddress(addr string) string {
	return strings.TrimSpace(strings.ToLower(addr))
}

// ShortAddress returns a truncated address for display (0x1234...5678).
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// ShortHex shortens a hash or address for log lines.
func ShortHex(v interface{ Hex() string }) string {
	return ShortAddress(v.Hex())
}

// IsHexAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsHexAddress(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// WeiToEth formats a wei amount as a decimal ether string.
func WeiToEth(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).SetInt(wei)
	f.Quo(f, new(big.Float).SetInt(big.NewInt(params.Ether)))
	return f.Text('f', 6)
}

// BigString renders a possibly-nil big.Int as a base-10 string.
func BigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
