package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aaronwang/pickup-auction/api-gateway/internal/auction"
	"github.com/aaronwang/pickup-auction/api-gateway/internal/catalog"
	"github.com/aaronwang/pickup-auction/api-gateway/internal/handlers"
	redisClient "github.com/aaronwang/pickup-auction/api-gateway/internal/redis"
	"github.com/aaronwang/pickup-auction/api-gateway/internal/service"
	"github.com/aaronwang/pickup-auction/api-gateway/internal/swipe"
	"github.com/aaronwang/pickup-auction/shared/config"
	"github.com/aaronwang/pickup-auction/shared/logger"
	"github.com/aaronwang/pickup-auction/shared/models"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig()
	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("api gateway stopped", zap.Error(err))
	}
	log.Info("server stopped gracefully")
}

func run(cfg *Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	now := time.Now()
	var items []models.Item
	if cfg.SeedCatalog {
		var err error
		if items, err = catalog.Items(now); err != nil {
			return fmt.Errorf("failed to load item catalog: %w", err)
		}
	}
	events, err := catalog.Events(now)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	characters, err := catalog.Characters()
	if err != nil {
		return fmt.Errorf("failed to load characters: %w", err)
	}
	log.Info("catalog loaded",
		zap.Int("items", len(items)),
		zap.Int("events", len(events)),
		zap.Int("characters", len(characters)))

	store := auction.NewStore(items)
	opts := []service.Option{service.WithPaymentDelay(cfg.PaymentDelay)}
	var swipeState swipe.StateStore
	var redisHealth handlers.Pinger

	if cfg.EnableEvents {
		log.Info("connecting to Redis", zap.String("addr", cfg.RedisAddr))
		rdb, err := redisClient.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		log.Info("connecting to NATS", zap.String("url", cfg.NatsURL))
		natsConn, err := nats.Connect(cfg.NatsURL, nats.Name("api-gateway"))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsConn.Close()

		streamCtx, streamCancel := context.WithTimeout(ctx, 10*time.Second)
		archive, err := service.NewJetStreamPublisher(streamCtx, natsConn, log)
		streamCancel()
		if err != nil {
			return err
		}

		opts = append(opts, service.WithLivePublisher(rdb), service.WithArchive(archive))
		swipeState = rdb
		redisHealth = rdb
	} else {
		log.Warn("event publishing disabled, running in memory only")
	}

	bidding := service.NewBiddingService(store, log, opts...)
	decks := swipe.NewService(characters, swipeState, log)

	handler := handlers.NewHandler(store, bidding, decks, events, redisHealth, log)
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler.SetupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second, // covers the simulated payment delay
		IdleTimeout:  60 * time.Second,
	}

	// The store outlives the server so in-flight requests can finish.
	storeCtx, stopStore := context.WithCancel(context.Background())
	defer stopStore()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store.Run(storeCtx)
		return nil
	})
	g.Go(func() error {
		log.Info("api gateway listening", zap.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		bidding.Wait()
		stopStore()
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Config holds application configuration
type Config struct {
	ServerAddr    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NatsURL       string
	LogLevel      string
	PaymentDelay  time.Duration
	SeedCatalog   bool
	EnableEvents  bool
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	return &Config{
		ServerAddr:    config.GetEnv("SERVER_ADDR", ":8080"),
		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       config.GetEnvInt("REDIS_DB", 0),
		NatsURL:       config.GetEnv("NATS_URL", nats.DefaultURL),
		LogLevel:      config.GetEnv("LOG_LEVEL", "info"),
		PaymentDelay:  config.GetEnvDuration("PAYMENT_DELAY", service.DefaultPaymentDelay),
		SeedCatalog:   config.GetEnvBool("SEED_CATALOG", true),
		EnableEvents:  config.GetEnvBool("ENABLE_EVENTS", true),
	}
}
