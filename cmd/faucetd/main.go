// Command faucetd serves the Sui testnet faucet.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/artiswap/sui-faucet/internal/api"
	"github.com/artiswap/sui-faucet/internal/config"
	"github.com/artiswap/sui-faucet/internal/dispense"
	"github.com/artiswap/sui-faucet/internal/ledger"
	"github.com/artiswap/sui-faucet/internal/logging"
	"github.com/artiswap/sui-faucet/internal/policy"
	"github.com/artiswap/sui-faucet/internal/quota"
	"github.com/artiswap/sui-faucet/internal/transfer"
)

const (
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second

	originKeyPrefix = "faucet_ip"
	walletKeyPrefix = "faucet_wallet"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the service configuration file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("faucetd: %v", err)
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("faucetd: connect postgres failed: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	quotaStore := quota.NewRedisStore(rdb)
	if err = quotaStore.Ping(startCtx); err != nil {
		log.Fatalf("faucetd: quota store unreachable: %v", err)
	}

	policySource := policy.NewPGSource(pool)
	policies := policy.NewStore(policySource)
	if err = policies.Load(startCtx); err != nil {
		// Serving traffic with an undefined quota or grant policy is
		// not an option, so a missing row stops the process here.
		log.Fatalf("faucetd: policy load failed: %v", err)
	}

	ledgerStore := ledger.NewStore(pool)
	dispenser := dispense.New(
		policies,
		quota.NewLimiter(quotaStore, originKeyPrefix),
		quota.NewLimiter(quotaStore, walletKeyPrefix),
		transfer.NewClient(cfg.GasStationURL),
		ledgerStore,
		dispense.WithTransferTimeout(cfg.TransferTimeout),
	)

	server := api.NewServer(
		dispenser,
		policySource,
		policies,
		ledgerStore,
		transfer.NewBalanceReader(cfg.RPCURL, cfg.FaucetAddress),
		cfg.AdminToken,
		cfg.TrustForwardedFor,
	)

	watcher := config.NewWatcher(*configPath, func(next *config.Config) {
		logging.SetLevel(next.Log.Level)
	})
	if watcher != nil {
		if err = watcher.Start(ctx); err != nil {
			log.Warnf("faucetd: config watch disabled: %v", err)
		}
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}

	go func() {
		log.Infof("faucetd: listening on %s", cfg.ListenAddr)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Errorf("faucetd: serve failed: %v", serveErr)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("faucetd: shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("faucetd: shutdown failed: %v", err)
		os.Exit(1)
	}
}
