package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"medeasy/marketplace/internal/api"
	"medeasy/marketplace/internal/assignment"
	"medeasy/marketplace/internal/config"
	"medeasy/marketplace/internal/database"
	"medeasy/marketplace/internal/fulfillment"
	"medeasy/marketplace/internal/inventory"
	"medeasy/marketplace/internal/logger"
	"medeasy/marketplace/internal/migrations"
	"medeasy/marketplace/internal/notify"
	"medeasy/marketplace/internal/ocr"
	"medeasy/marketplace/internal/seed"
	"medeasy/marketplace/internal/store"
)

const notifyTimeout = 5 * time.Second

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	appLogger, err := logger.New(cfg.Logger, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer appLogger.Sync()

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		appLogger.Fatal("could not connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		appLogger.Fatal("could not run migrations", zap.Error(err))
	}
	if _, err := seed.LoadMedicinesFile(context.Background(), db, cfg.CatalogCSV, appLogger); err != nil {
		appLogger.Error("could not seed medicine catalog", zap.Error(err))
	}

	schedule, err := cfg.Commission.Schedule()
	if err != nil {
		appLogger.Fatal("invalid commission configuration", zap.Error(err))
	}
	fee, err := cfg.Commission.Fee()
	if err != nil {
		appLogger.Fatal("invalid delivery fee", zap.Error(err))
	}

	repo := inventory.NewRepository(db)
	var cache inventory.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			appLogger.Warn("redis unreachable, inventory cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			cache = client
			appLogger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		}
		cancel()
	}
	catalog := inventory.NewCachedProvider(repo, cache, cfg.Redis.CacheTTL, appLogger)

	var dispatcher notify.Dispatcher = notify.NewLogDispatcher(appLogger)
	if len(cfg.Kafka.Brokers) > 0 {
		kafka := notify.NewKafkaDispatcher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafka.Close()
		dispatcher = kafka
		appLogger.Info("publishing notifications to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	notifier := notify.NewAsync(dispatcher, notifyTimeout, appLogger)
	defer notifier.Wait()

	extractor := ocr.NewClient(cfg.OCR.ServiceURL, cfg.OCR.APIKey, cfg.OCR.Timeout, appLogger)

	st := store.New(db)
	svc := fulfillment.NewService(st, catalog, extractor, notifier, fulfillment.Config{
		Schedule:    schedule,
		DeliveryFee: fee,
	}, appLogger)
	deliveries := assignment.NewController(st, svc.Machine(), svc, notifier, appLogger)

	handler := api.New(db, cfg.Secret, api.Dependencies{
		Service:      svc,
		Deliveries:   deliveries,
		Inventory:    repo,
		Catalog:      catalog,
		Logger:       appLogger,
		AllowOrigins: cfg.AllowOrigins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("MedEasy marketplace server starting", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	appLogger.Info("server stopped")
}
