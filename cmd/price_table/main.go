package main

import (
	"flag"
	"fmt"

	"github.com/buidlcat/friendrekt/analyzer"
	"github.com/buidlcat/friendrekt/utils"
)

func main() {
	amount := flag.Uint64("amount", 5, "shares bought per snipe")
	maxSupply := flag.Uint64("max", 40, "highest supply to quote")
	flag.Parse()

	curve := analyzer.BondingCurve{}

	fmt.Printf("Bonding curve cost of %d shares\n", *amount)
	fmt.Printf("%8s  %14s  %s\n", "supply", "eth", "wei")
	for _, row := range analyzer.PriceTable(curve, *amount, *maxSupply) {
		fmt.Printf("%8d  %14s  %s\n", row.Supply, utils.WeiToEth(row.Cost), row.Cost.String())
	}

	fmt.Println("\nAcquisition tiers (followers > threshold → supply limit)")
	for _, followers := range []uint64{20_001, 100_001, 250_001, 500_001, 1_000_001} {
		limit := analyzer.Decide(followers)
		fmt.Printf("  %9d → %3d  (cost at limit: %s ETH)\n",
			followers, limit, utils.WeiToEth(curve.Price(limit, *amount)))
	}
}
