package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/buidlcat/friendrekt/analyzer"
	"github.com/buidlcat/friendrekt/api"
	"github.com/buidlcat/friendrekt/config"
	"github.com/buidlcat/friendrekt/syncer"
	"github.com/buidlcat/friendrekt/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	hash := flag.String("hash", "", "transaction hash to decode")
	flag.Parse()
	if *hash == "" {
		fmt.Fprintln(os.Stderr, "usage: decode_tx -hash 0x...")
		os.Exit(2)
	}

	cfg, err := config.Load(os.Getenv("FRIENDREKT_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Chain.HTTPURL == "" {
		log.Fatal("BASE_HTTP_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	chain, err := api.DialChain(ctx, cfg.Chain.HTTPURL)
	if err != nil {
		log.Fatalf("failed to dial chain: %v", err)
	}
	defer chain.Close()

	tx, err := chain.TransactionByHash(ctx, common.HexToHash(*hash))
	if err != nil {
		log.Fatalf("failed to fetch transaction: %v", err)
	}

	class := analyzer.Classify(tx, common.HexToAddress(cfg.Contracts.Shares))

	fmt.Printf("Hash:      %s\n", tx.Hash.Hex())
	fmt.Printf("From:      %s\n", tx.From.Hex())
	if tx.To != nil {
		fmt.Printf("To:        %s\n", tx.To.Hex())
	} else {
		fmt.Printf("To:        (contract creation)\n")
	}
	fmt.Printf("Type:      %d\n", tx.Type)
	fmt.Printf("Value:     %s ETH\n", utils.WeiToEth(tx.Value))
	fmt.Printf("Input len: %d\n", len(tx.Input))
	fmt.Printf("Max fee:   %s\n", utils.BigString(tx.MaxFeePerGas))
	fmt.Printf("Tip:       %s\n", utils.BigString(tx.MaxPriorityFeePerGas))
	fmt.Printf("Kind:      %s\n", class.Kind)

	switch class.Kind {
	case analyzer.KindBuyAction:
		fmt.Printf("Subject:   %s\n", class.Subject.Hex())
	case analyzer.KindRelayMessage:
		receipt, err := chain.TransactionReceipt(ctx, tx.Hash)
		if err != nil {
			log.Printf("receipt unavailable: %v", err)
			return
		}
		if addr, ok := syncer.Depositor(receipt); ok {
			fmt.Printf("Depositor: %s\n", addr.Hex())
		} else {
			fmt.Println("Depositor: (no deposit event)")
		}
	}
}
