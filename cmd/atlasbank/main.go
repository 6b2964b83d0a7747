package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atlasfin/atlasbank/api"
	"github.com/atlasfin/atlasbank/internal/bookkeeper"
	"github.com/atlasfin/atlasbank/internal/config"
	"github.com/atlasfin/atlasbank/internal/database"
	"github.com/atlasfin/atlasbank/internal/identities"
	"github.com/atlasfin/atlasbank/internal/marketdata"
	"github.com/atlasfin/atlasbank/internal/messaging"
	"github.com/atlasfin/atlasbank/internal/trading"
	"github.com/atlasfin/atlasbank/pkg/logger"
	"github.com/atlasfin/atlasbank/pkg/metrics"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cache.Ping(context.Background()).Err(); err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	}

	var publisher messaging.Publisher = messaging.NoopPublisher{}
	if cfg.Kafka.Enabled {
		publisher, err = messaging.NewKafkaPublisher(zapLogger, cfg.Kafka.Brokers, cfg.Kafka.TradeTopic, cfg.Kafka.RejectTopic)
		if err != nil {
			zapLogger.Fatal("Failed to create Kafka publisher", zap.Error(err))
		}
	}
	defer publisher.Close()

	identitiesSvc, err := identities.NewService(zapLogger, db, cfg.JWT.Secret, cfg.JWT.ExpirationHours)
	if err != nil {
		zapLogger.Fatal("Failed to create identities service", zap.Error(err))
	}

	bookkeeperSvc, err := bookkeeper.NewService(zapLogger, db)
	if err != nil {
		zapLogger.Fatal("Failed to create bookkeeper service", zap.Error(err))
	}

	marketdataSvc, err := marketdata.NewService(zapLogger, db, cache)
	if err != nil {
		zapLogger.Fatal("Failed to create market data service", zap.Error(err))
	}

	tradingSvc, err := trading.NewService(zapLogger, db, bookkeeperSvc, marketdataSvc, publisher, cfg.Trading)
	if err != nil {
		zapLogger.Fatal("Failed to create trading service", zap.Error(err))
	}

	// DB pool metrics every 30s
	poolTicker := time.NewTicker(30 * time.Second)
	defer poolTicker.Stop()
	go func() {
		for range poolTicker.C {
			if sqlDB, err := db.DB(); err == nil {
				stats := sqlDB.Stats()
				metrics.DBOpenConns.WithLabelValues("postgres").Set(float64(stats.OpenConnections))
				metrics.DBIdleConns.WithLabelValues("postgres").Set(float64(stats.Idle))
				metrics.DBInUseConns.WithLabelValues("postgres").Set(float64(stats.InUse))
			}
		}
	}()

	apiServer := api.NewServer(zapLogger, identitiesSvc, bookkeeperSvc, marketdataSvc, tradingSvc)

	if err := identitiesSvc.Start(); err != nil {
		zapLogger.Fatal("Failed to start identities service", zap.Error(err))
	}
	if err := bookkeeperSvc.Start(); err != nil {
		zapLogger.Fatal("Failed to start bookkeeper service", zap.Error(err))
	}
	if err := marketdataSvc.Start(); err != nil {
		zapLogger.Fatal("Failed to start market data service", zap.Error(err))
	}
	if err := tradingSvc.Start(); err != nil {
		zapLogger.Fatal("Failed to start trading service", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}

	if err := tradingSvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop trading service", zap.Error(err))
	}
	if err := marketdataSvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop market data service", zap.Error(err))
	}
	if err := bookkeeperSvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop bookkeeper service", zap.Error(err))
	}
	if err := identitiesSvc.Stop(); err != nil {
		zapLogger.Error("Failed to stop identities service", zap.Error(err))
	}

	zapLogger.Info("Server exited properly")
}
