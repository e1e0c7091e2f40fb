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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	redisClient "github.com/aaronwang/pickup-auction/broadcast-service/internal/redis"
	wsHandler "github.com/aaronwang/pickup-auction/broadcast-service/internal/websocket"
	"github.com/aaronwang/pickup-auction/shared/config"
	"github.com/aaronwang/pickup-auction/shared/keys"
	"github.com/aaronwang/pickup-auction/shared/logger"
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
		log.Fatal("broadcast service stopped", zap.Error(err))
	}
	log.Info("server stopped gracefully")
}

func run(cfg *Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("connecting to Redis", zap.String("addr", cfg.RedisAddr))
	subscriber, err := redisClient.NewSubscriber(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		return err
	}
	defer subscriber.Close()

	// Subscribe to all bid events using pattern matching
	if err := subscriber.SubscribeToPattern(ctx, keys.BidChannelPattern); err != nil {
		return fmt.Errorf("failed to subscribe to Redis channels: %w", err)
	}
	log.Info("subscribed to bid events", zap.String("pattern", keys.BidChannelPattern))

	wsManager := wsHandler.NewManager(log)
	handler := wsHandler.NewHandler(wsManager, subscriber, log)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler.SetupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	messages := make(chan redisClient.Message, 256)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsManager.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("listening for Redis Pub/Sub messages")
		err := subscriber.Listen(gctx, messages)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("redis listener: %w", err)
	})
	g.Go(func() error {
		// Forward Redis Pub/Sub messages to WebSocket clients
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg := <-messages:
				wsManager.Broadcast(msg.ItemID, msg.Payload)
			}
		}
	})
	g.Go(func() error {
		log.Info("broadcast service listening", zap.String("addr", cfg.ServerAddr))
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

		if err := server.Shutdown(shutdownCtx); err != nil {
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
	LogLevel      string
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	return &Config{
		ServerAddr:    config.GetEnv("SERVER_ADDR", ":8081"),
		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       config.GetEnvInt("REDIS_DB", 0),
		LogLevel:      config.GetEnv("LOG_LEVEL", "info"),
	}
}
