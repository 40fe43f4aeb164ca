package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/joho/godotenv"

	"github.com/buidlcat/friendrekt/api"
	"github.com/buidlcat/friendrekt/config"
	"github.com/buidlcat/friendrekt/logging"
	"github.com/buidlcat/friendrekt/models"
	"github.com/buidlcat/friendrekt/syncer"
	"github.com/buidlcat/friendrekt/utils"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: no .env file found")
	}

	subject := flag.String("subject", "", "shares subject to snipe")
	limit := flag.Uint64("limit", 30, "supply limit passed to the sniper")
	maxFeeGwei := flag.Float64("max-fee", 0.1, "max fee per gas in gwei")
	tipGwei := flag.Float64("tip", 0.01, "max priority fee per gas in gwei")
	flag.Parse()

	if !utils.IsHexAddress(*subject) {
		log.Fatal("-subject must be a 0x address")
	}

	cfg, err := config.Load(os.Getenv("FRIENDREKT_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New("debug", "console")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	chain, err := api.DialChain(ctx, cfg.Chain.HTTPURL)
	if err != nil {
		log.Fatalf("Failed to dial chain: %v", err)
	}
	defer chain.Close()

	chainID, err := chain.ChainID(ctx)
	if err != nil {
		log.Fatalf("Failed to read chain id: %v", err)
	}

	key, err := syncer.ParsePrivateKey(cfg.Wallet.PrivateKey)
	if err != nil {
		log.Fatal(err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	nonces := syncer.NewNonceTracker(chain, from, 0, logger)

	sequencer := api.NewSequencerClient(cfg.Sequencer.URL, time.Duration(cfg.Sequencer.TimeoutMS)*time.Millisecond, logger)
	executor, err := syncer.NewExecutor(syncer.ExecutorConfig{
		PrivateKey: cfg.Wallet.PrivateKey,
		Sniper:     common.HexToAddress(cfg.Contracts.Sniper),
		ChainID:    chainID,
		GasLimit:   cfg.Snipe.GasLimit,
	}, nonces, sequencer, logger)
	if err != nil {
		log.Fatalf("Failed to create executor: %v", err)
	}

	// A synthetic trigger carrying the fees we want to mirror.
	trigger := &models.Transaction{
		Hash:                 common.Hash{},
		From:                 common.HexToAddress(*subject),
		Type:                 types.DynamicFeeTxType,
		Value:                new(big.Int),
		MaxFeePerGas:         gwei(*maxFeeGwei),
		MaxPriorityFeePerGas: gwei(*tipGwei),
	}

	req, err := executor.BuildRequest(trigger, cfg.Snipe.Amount, *limit, nonces.Reserve(ctx))
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}
	signed, err := executor.Sign(req)
	if err != nil {
		log.Fatalf("Failed to sign: %v", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		log.Fatalf("Failed to encode: %v", err)
	}

	log.Printf("Signed snipe from %s", from.Hex())
	log.Printf("  Subject: %s  Amount: %d  Limit: %d", *subject, cfg.Snipe.Amount, *limit)
	log.Printf("  Nonce: %d  Gas: %d  MaxFee: %s  Tip: %s", req.Nonce, req.Gas, req.MaxFeePerGas, req.MaxPriorityFeePerGas)
	log.Printf("  Tx hash: %s", signed.Hash().Hex())
	log.Printf("  Raw: %s", hexutil.Encode(raw))

	// Ask user before broadcasting a real transaction
	fmt.Print("\nBroadcast this transaction to the sequencer? (yes/no): ")
	var response string
	fmt.Scanln(&response)

	if response != "yes" {
		log.Println("Skipping broadcast. Signing verified successfully!")
		return
	}

	hash, ok := sequencer.SendRawTransaction(ctx, hexutil.Encode(raw))
	if !ok {
		log.Fatal("Broadcast failed (see log above)")
	}
	log.Printf("SNIPE SENT: https://basescan.org/tx/%s", hash)
}

func gwei(v float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(v), big.NewFloat(params.GWei))
	out, _ := f.Int(nil)
	return out
}
