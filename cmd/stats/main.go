package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/buidlcat/friendrekt/config"
	"github.com/buidlcat/friendrekt/syncer"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("FRIENDREKT_CONFIG"))
	if err != nil {
		log.Fatalf("[stats] failed to load config: %v", err)
	}
	if cfg.Redis.Addr == "" {
		log.Fatal("[stats] REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := syncer.NewMetricsStore(rdb).GetStats(ctx)
	if err != nil {
		log.Fatalf("[stats] failed to read snapshot: %v", err)
	}
	if stats.UpdatedAt.IsZero() {
		log.Println("[stats] no snapshot stored yet")
		return
	}

	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(out))
	fmt.Printf("\nSnapshot age: %s\n", time.Since(stats.UpdatedAt).Round(time.Second))
}
