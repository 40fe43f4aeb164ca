package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/buidlcat/friendrekt/analyzer"
	"github.com/buidlcat/friendrekt/api"
	"github.com/buidlcat/friendrekt/config"
	"github.com/buidlcat/friendrekt/handlers"
	"github.com/buidlcat/friendrekt/logging"
	"github.com/buidlcat/friendrekt/service"
	"github.com/buidlcat/friendrekt/storage"
	"github.com/buidlcat/friendrekt/syncer"
	"github.com/buidlcat/friendrekt/utils"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load(os.Getenv("FRIENDREKT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Info("no .env file found, using environment")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sniper exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	chain, err := api.DialChain(ctx, cfg.Chain.HTTPURL)
	if err != nil {
		return err
	}
	defer chain.Close()

	chainID, err := chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}

	key, err := syncer.ParsePrivateKey(cfg.Wallet.PrivateKey)
	if err != nil {
		return err
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	startNonce, err := chain.PendingNonceAt(ctx, from)
	if err != nil {
		return fmt.Errorf("read starting nonce: %w", err)
	}
	nonces := syncer.NewNonceTracker(chain, from, startNonce, logger)

	sequencer := api.NewSequencerClient(cfg.Sequencer.URL, ms(cfg.Sequencer.TimeoutMS), logger)
	executor, err := syncer.NewExecutor(syncer.ExecutorConfig{
		PrivateKey: cfg.Wallet.PrivateKey,
		Sniper:     common.HexToAddress(cfg.Contracts.Sniper),
		ChainID:    chainID,
		GasLimit:   cfg.Snipe.GasLimit,
	}, nonces, sequencer, logger)
	if err != nil {
		return err
	}

	pricer := analyzer.BondingCurve{}
	logPriceTable(logger, pricer, cfg.Snipe.Amount)

	lookupTimeout := time.Duration(cfg.Reputation.TimeoutSec) * time.Second
	enricher := service.NewEnricher(
		api.NewIdentityClient(cfg.Reputation.IdentityURL, lookupTimeout),
		api.NewFollowersClient(cfg.Reputation.FollowersURL, lookupTimeout),
		logger,
	)

	metrics := syncer.NewMetrics()
	dispatcher := syncer.NewDispatcher(syncer.DispatcherConfig{
		Shares:           common.HexToAddress(cfg.Contracts.Shares),
		DedupCapacity:    cfg.Pipeline.DedupCapacity,
		Workers:          cfg.Pipeline.Workers,
		QueueSize:        cfg.Pipeline.QueueSize,
		PrewarmRelay:     cfg.Pipeline.PrewarmRelay,
		PrewarmTransfers: cfg.Pipeline.PrewarmTransfers,
		ReceiptTimeout:   ms(cfg.Chain.FetchTimeoutMS),
	}, enricher, analyzer.NewEngine(pricer, cfg.Snipe.Amount), executor, chain, store, metrics, logger)
	defer dispatcher.Stop()

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, stats snapshot disabled", zap.Error(err))
		} else {
			reporter := syncer.NewReporter(metrics, syncer.NewMetricsStore(rdb),
				time.Duration(cfg.Redis.SnapshotSec)*time.Second, logger)
			go reporter.Run(ctx)
		}
	}

	srv := newServer(cfg, store, metrics, pricer, logger)
	go func() {
		logger.Info("status API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status API failed", zap.Error(err))
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), ms(cfg.Server.ShutdownTimeoutMS))
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	heads := api.NewHeadsWSClient(cfg.Chain.WSURL, api.HeadsOptions{
		Reconnect:     cfg.Listener.Reconnect,
		MaxReconnects: cfg.Listener.MaxReconnects,
		Backoff:       ms(cfg.Listener.BackoffMS),
		MaxBackoff:    ms(cfg.Listener.MaxBackoffMS),
		Handshake:     ms(cfg.Listener.HandshakeMS),
	}, logger)

	listener := syncer.NewListener(heads, chain, dispatcher, ms(cfg.Chain.FetchTimeoutMS), metrics, logger)
	return listener.Run(ctx)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.DataStore, error) {
	switch cfg.Data.Backend {
	case "postgres":
		return storage.NewPostgres(ctx)
	default:
		return storage.New(cfg.Data.DBPath)
	}
}

func newServer(cfg *config.Config, store storage.DataStore, metrics *syncer.Metrics,
	pricer analyzer.Pricer, logger *zap.Logger) *http.Server {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	handlers.NewHandler(store, metrics, pricer, cfg.Snipe.Amount, logger).Register(r)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  ms(cfg.Server.ReadTimeoutMS),
		WriteTimeout: ms(cfg.Server.WriteTimeoutMS),
	}
}

func logPriceTable(logger *zap.Logger, pricer analyzer.Pricer, amount uint64) {
	for _, row := range analyzer.PriceTable(pricer, amount, 40) {
		logger.Info("bonding curve price",
			zap.Uint64("supply", row.Supply),
			zap.Uint64("amount", row.Amount),
			zap.String("eth", utils.WeiToEth(row.Cost)))
	}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
