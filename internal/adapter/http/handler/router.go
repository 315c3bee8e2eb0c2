package handler

import (
	"wallet-vault/internal/adapter/http/middleware"
	redisStore "wallet-vault/internal/adapter/storage/redis"
	"wallet-vault/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	LedgerSvc      ports.LedgerService
	OTPSvc         ports.OTPService
	FraudSvc       ports.FraudService
	ReconcileSvc   ports.ReconcileService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Provider webhook (signature-authenticated, no JWT) ---
	webhookHandler := NewWebhookHandler(deps.ReconcileSvc)
	v1.POST("/webhooks/provider", rl("webhook"), webhookHandler.ProviderWebhook)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc)
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	otpHandler := NewOTPHandler(deps.OTPSvc)

	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.POST("", rl("wallets_adjust"), walletHandler.Create)
		wallets.GET("/balance", rl("wallets_read"), walletHandler.GetBalance)
		wallets.POST("/adjust", rl("wallets_adjust"), walletHandler.Adjust)
	}

	otp := v1.Group("/otp", jwtAuth)
	{
		otp.POST("/issue", rl("otp_issue"), otpHandler.Issue)
		otp.POST("/verify", rl("otp_verify"), otpHandler.Verify)
	}

	transactions := v1.Group("/transactions", jwtAuth)
	{
		transactions.GET("", rl("wallets_read"), ledgerHandler.List)
		transactions.GET("/:reference", rl("wallets_read"), ledgerHandler.GetByReference)
	}

	// --- Admin routes (JWT + admin role) ---
	fraudHandler := NewFraudHandler(deps.FraudSvc)
	admin := v1.Group("/admin", jwtAuth, middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.PUT("/wallets/:owner_id/status", rl("admin"), walletHandler.SetStatus)
		admin.POST("/wallets/:owner_id/adjust", rl("admin"), walletHandler.AdminAdjust)
		admin.POST("/transactions/:reference/reverse", rl("admin"), ledgerHandler.Reverse)
		admin.GET("/fraud/:owner_id", rl("admin"), fraudHandler.ListByOwner)
		admin.POST("/fraud/:id/resolve", rl("admin"), fraudHandler.Resolve)
	}

	return r
}
