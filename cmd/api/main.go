package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-vault/config"
	"wallet-vault/internal/adapter/geoip"
	httpHandler "wallet-vault/internal/adapter/http/handler"
	pgStorage "wallet-vault/internal/adapter/storage/postgres"
	redisStorage "wallet-vault/internal/adapter/storage/redis"
	"wallet-vault/internal/core/ports"
	"wallet-vault/internal/service"
	"wallet-vault/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Wallet Vault")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	otpRepo := pgStorage.NewOTPRepo(pool)
	fraudRepo := pgStorage.NewFraudLogRepo(pool)
	providerRepo := pgStorage.NewProviderPaymentRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	replayGuard := redisStorage.NewReplayGuard(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	cipher, err := service.NewPBKDF2BalanceCipher(cfg.Cipher.Pepper, cfg.Cipher.KDFIterations, cfg.Cipher.LegacySaltHex)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize balance cipher")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// GeoIP resolver is optional; fraud analysis falls back to IP-prefix
	// comparison when no database is configured.
	var geoResolver ports.GeoResolver
	if cfg.Fraud.GeoIPDBPath != "" {
		resolver, gerr := geoip.NewResolver(cfg.Fraud.GeoIPDBPath)
		if gerr != nil {
			log.Warn().Err(gerr).Str("path", cfg.Fraud.GeoIPDBPath).Msg("GeoIP database unavailable, location checks degraded")
		} else {
			defer resolver.Close()
			geoResolver = resolver
			log.Info().Str("path", cfg.Fraud.GeoIPDBPath).Msg("GeoIP database loaded")
		}
	}

	// Initialize business services
	ledgerSvc := service.NewLedgerService(txRepo, walletRepo, cipher, transactor, cfg.Cipher.ServiceCredential, log)
	otpSvc := service.NewOTPService(
		otpRepo,
		hashSvc,
		cfg.OTP.TTL,
		cfg.OTP.MaxAttempts,
		cfg.OTP.CodeLength,
		cfg.OTP.LockoutFor,
		log,
	)
	fraudSvc := service.NewFraudService(
		fraudRepo,
		txRepo,
		walletRepo,
		geoResolver,
		cfg.Fraud.VelocityWindow,
		cfg.Fraud.VelocityThreshold,
		cfg.Fraud.DeviationMultiplier,
		log,
	)
	walletSvc := service.NewWalletService(
		walletRepo,
		idempotencyRepo,
		idempotencyCache,
		cipher,
		ledgerSvc,
		otpSvc,
		fraudSvc,
		transactor,
		cfg.Cipher.ServiceCredential,
		log,
	)
	reconcileSvc := service.NewReconcileService(
		providerRepo,
		walletRepo,
		txRepo,
		fraudRepo,
		ledgerSvc,
		cipher,
		sigSvc,
		replayGuard,
		transactor,
		cfg.Provider.WebhookSecret,
		cfg.Cipher.ServiceCredential,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Periodic purge of expired one-time codes
	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	defer cancelCleanup()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if n, cerr := otpSvc.CleanupExpired(cleanupCtx); cerr != nil {
					log.Error().Err(cerr).Msg("Expired code cleanup failed")
				} else if n > 0 {
					log.Info().Int64("purged", n).Msg("Expired one-time codes purged")
				}
			}
		}
	}()

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		LedgerSvc:      ledgerSvc,
		OTPSvc:         otpSvc,
		FraudSvc:       fraudSvc,
		ReconcileSvc:   reconcileSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	cancelCleanup()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
