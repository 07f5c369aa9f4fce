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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prudhvinik1/ledgersync/internal/api"
	"github.com/prudhvinik1/ledgersync/internal/config"
	"github.com/prudhvinik1/ledgersync/internal/database"
	"github.com/prudhvinik1/ledgersync/internal/logging"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
	"github.com/prudhvinik1/ledgersync/internal/repositories/postgres"
	"github.com/prudhvinik1/ledgersync/internal/repositories/surreal"
	"github.com/prudhvinik1/ledgersync/internal/router"
	"github.com/prudhvinik1/ledgersync/internal/services"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, false)

	// Directory database: accounts and backend assignments
	directoryPool, err := database.NewPostgresPool(ctx, cfg.DirectoryDatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create directory pool")
	}
	defer directoryPool.Close()
	if err := repositories.EnsureDirectorySchema(ctx, directoryPool); err != nil {
		logger.Fatal().Err(err).Msg("Failed to prepare directory schema")
	}

	// Backend B: relational
	backendBPool, err := database.NewPostgresPool(ctx, cfg.BackendBDatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create backend B pool")
	}
	defer backendBPool.Close()
	if err := postgres.NewProvisioner(backendBPool).EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to prepare backend B schema")
	}

	// Backend A: document
	surrealDB, err := database.NewSurrealDB(ctx, database.SurrealOptions{
		URL:       cfg.Surreal.URL,
		Namespace: cfg.Surreal.Namespace,
		Database:  cfg.Surreal.Database,
		User:      cfg.Surreal.User,
		Password:  cfg.Surreal.Password,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to surrealdb")
	}
	defer surrealDB.Close(ctx)

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create redis client")
	}
	defer redisClient.Close()

	// Storage router, order of sets is the tie-break order for new users
	storage, err := router.New(
		repositories.NewPostgresAssignmentRepository(directoryPool),
		logger,
		surreal.NewSet(surrealDB),
		postgres.NewSet(backendBPool),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create storage router")
	}

	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
	accounts := services.NewAccountService(repositories.NewPostgresAccountRepository(directoryPool), storage, tokens, logger)
	loans := services.NewLoanService(storage, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := api.NewHandler(api.Deps{
		Repositories:   storage,
		Accounts:       accounts,
		Loans:          loans,
		Tokens:         tokens,
		Idempotency:    repositories.NewRedisIdempotencyRepository(redisClient, cfg.IdempotencyTTL),
		Logger:         logger,
		Registry:       registry,
		RequestTimeout: cfg.RequestTimeout,
	})

	// Start Server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info().Msg("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	logger.Info().Str("port", cfg.ServerPort).Msg("Starting server")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server error")
	}

	logger.Info().Msg("Server stopped gracefully")
}
