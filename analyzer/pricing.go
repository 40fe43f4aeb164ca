package analyzer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// curveDivisor is the friend.tech curve constant: price(s) = s^2 / 16000 ether.
const curveDivisor = 16000

// BondingCurve prices shares on the friend.tech quadratic curve.
type BondingCurve struct{}

// Price returns the wei cost of buying amount shares when supply shares exist.
func (BondingCurve) Price(supply, amount uint64) *big.Int {
	sum1 := big.NewInt(0)
	if supply > 0 {
		sum1 = sumOfSquares(supply - 1)
	}

	sum2 := big.NewInt(0)
	if !(supply == 0 && amount == 1) && supply+amount > 0 {
		sum2 = sumOfSquares(supply - 1 + amount)
	}

	price := new(big.Int).Sub(sum2, sum1)
	price.Mul(price, big.NewInt(params.Ether))
	return price.Div(price, big.NewInt(curveDivisor))
}

// sumOfSquares returns n(n+1)(2n+1)/6.
func sumOfSquares(n uint64) *big.Int {
	bn := new(big.Int).SetUint64(n)
	a := new(big.Int).Add(bn, big.NewInt(1))
	b := new(big.Int).Mul(bn, big.NewInt(2))
	b.Add(b, big.NewInt(1))

	out := new(big.Int).Mul(bn, a)
	out.Mul(out, b)
	return out.Div(out, big.NewInt(6))
}

// PriceRow is one line of the startup price table.
type PriceRow struct {
	Supply uint64
	Amount uint64
	Cost   *big.Int
}

// PriceTable returns the cost of amount shares at supply 1 and every multiple of 5
// up to maxSupply.
func PriceTable(p Pricer, amount, maxSupply uint64) []PriceRow {
	var rows []PriceRow
	for supply := uint64(1); supply <= maxSupply; supply++ {
		if supply%5 != 0 && supply != 1 {
			continue
		}
		rows = append(rows, PriceRow{Supply: supply, Amount: amount, Cost: p.Price(supply, amount)})
	}
	return rows
}
