package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/buidlcat/friendrekt/config"
	"github.com/buidlcat/friendrekt/storage"
	"github.com/buidlcat/friendrekt/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	limit := flag.Int("limit", 20, "number of recent snipes to print")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("FRIENDREKT_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var store storage.DataStore
	switch cfg.Data.Backend {
	case "postgres":
		store, err = storage.NewPostgres(ctx)
	default:
		store, err = storage.New(cfg.Data.DBPath)
	}
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Data.Backend, err)
	}
	defer store.Close()

	fmt.Printf("Connected to %s store\n", cfg.Data.Backend)

	// 1. Summary
	fmt.Println("\n--- Snipe summary ---")
	sum, err := store.GetSnipeSummary(ctx)
	if err != nil {
		log.Fatalf("Error loading summary: %v", err)
	}
	fmt.Printf("Total: %d, Sent: %d, Failed: %d\n", sum.Total, sum.Succeeded, sum.Failed)

	// 2. Recent attempts
	fmt.Printf("\n--- Last %d snipes ---\n", *limit)
	snipes, err := store.ListSnipes(ctx, *limit)
	if err != nil {
		log.Fatalf("Error listing snipes: %v", err)
	}
	if len(snipes) == 0 {
		fmt.Println("No snipes recorded.")
		return
	}

	nonces := make(map[uint64]int)
	for _, s := range snipes {
		status := "SENT"
		if !s.Success {
			status = "FAIL"
		}
		fmt.Printf("%s  %s  %-16s  followers=%-9d limit=%-3d nonce=%-5d %4dms  %s\n",
			s.CreatedAt.Local().Format("2006-01-02 15:04:05"), status,
			truncate(s.Username, 16), s.Followers, s.AcquisitionLimit, s.Nonce, s.LatencyMs,
			utils.ShortAddress(s.Subject))
		if s.Success {
			nonces[s.Nonce]++
		}
	}

	// 3. Nonce reuse across successful broadcasts means one of them was replaced
	fmt.Println("\n--- Checking for reused nonces ---")
	found := false
	for n, count := range nonces {
		if count > 1 {
			found = true
			fmt.Printf("Nonce %d used by %d sent snipes\n", n, count)
		}
	}
	if !found {
		fmt.Println("No reused nonces found.")
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
