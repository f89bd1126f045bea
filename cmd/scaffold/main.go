// Package main is the entry point for the scaffold server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scaffold/config"
	"scaffold/internal/docstore"
	"scaffold/internal/kv"
	"scaffold/internal/logging"
	"scaffold/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logging.Setup(cfg.Logging.Format)

	// Connect to the shared key/value store
	store, err := kv.NewRedis(kv.RedisConfig{URL: cfg.Redis.URL})
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Connect to the document store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	client, database, err := docstore.Connect(ctx, docstore.MongoConfig{
		URL:      cfg.Mongo.URL,
		Database: cfg.Mongo.Database,
	})
	cancel()
	if err != nil {
		slog.Error("failed to connect to mongodb", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			slog.Error("mongodb disconnect error", "error", err)
		}
	}()
	slog.Info("mongodb connected", "database", database.Name())

	contacts, err := docstore.NewMongo[server.Contact](database, "contacts", server.ContactIndexes()...)
	if err != nil {
		slog.Error("failed to initialize contacts collection", "error", err)
		os.Exit(1)
	}

	// Create and start server
	srv := server.New(store, contacts, &server.Config{
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		Tenant:          cfg.Cache.Tenant,
		RecordTTL:       cfg.Cache.RecordTTL,
		ListTTL:         cfg.Cache.ListTTL,
		IdempotencyTTL:  cfg.Idempotency.TTL,
		LockTTL:         cfg.Idempotency.LockTTL,
	})

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	slog.Info("starting server", "address", addr)
	if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
