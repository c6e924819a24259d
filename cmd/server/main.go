package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "giftcards/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"giftcards/internal/auth"
	"giftcards/internal/cache"
	"giftcards/internal/config"
	"giftcards/internal/db"
	"giftcards/internal/events"
	"giftcards/internal/handler"
	"giftcards/internal/issuer"
	"giftcards/internal/ledger"
	"giftcards/internal/logger"
	"giftcards/internal/notify"
	"giftcards/internal/repository"
	"giftcards/internal/router"
	"giftcards/internal/service"
)

// @title Gift Card API
// @version 1.0
// @description Gift card issuing, activation, redemption and gifting with JWT-authenticated kiosk and back-office operators.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	if err := logger.Init(cfg.Environment, cfg.LogFile); err != nil {
		panic(err)
	}
	defer logger.Sync()

	gormDB, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("database init", zap.Error(err))
	}

	// Drop tables if RESET_DB environment variable is set
	if os.Getenv("RESET_DB") == "true" {
		logger.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			logger.Fatal("reset database", zap.Error(err))
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatal("auto-migrate", zap.Error(err))
	}

	defaultRate, err := decimal.NewFromString(cfg.Billing.DefaultCommissionRate)
	if err != nil {
		logger.Fatal("invalid default commission rate",
			zap.String("rate", cfg.Billing.DefaultCommissionRate),
			zap.Error(err),
		)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()

	var publisher events.Publisher = events.NopPublisher{}
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = events.Connect(cfg.NATSURL)
		if err != nil {
			logger.Fatal("nats connect", zap.Error(err))
		}
		defer natsConn.Drain()
		publisher = events.NewNATSPublisher(natsConn)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := notify.NewDispatcher(notify.LogSender{}, 0, 0)
	dispatcher.Start(ctx)
	defer dispatcher.Close()

	store := repository.NewStore(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	deps := service.Deps{
		Store:    store,
		Issuer:   issuer.New(cfg.Cards.CodeAttempts),
		Ledger:   ledger.NewSynchronizer(store, defaultRate, cfg.Billing.Currency),
		Cache:    cacheClient,
		Notifier: dispatcher,
		Events:   publisher,
		Options: service.Options{
			ConflictRetries: cfg.Cards.ConflictRetries,
			CacheTTL:        cfg.Cards.CacheTTL,
			SystemEmail:     cfg.Cards.SystemEmail,
			RecoveryLimit:   cfg.Cards.RecoveryLimit,
		},
	}
	authService := service.NewAuthService(store.Operators(), jwtService, tokenStore)
	cardService := service.NewCardService(deps)
	giftingService := service.NewGiftingService(deps)
	fulfillmentService := service.NewFulfillmentService(deps)
	recoveryService := service.NewRecoveryService(deps)
	catalogService := service.NewCatalogService(store, cacheClient)
	billingService := service.NewBillingService(deps)

	e := echo.New()
	e.HideBanner = true

	// Register routes
	router.Register(e, jwtService, tokenStore, router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Cards:   handler.NewCardHandler(cardService, giftingService, recoveryService),
		Kiosk:   handler.NewKioskHandler(cardService, catalogService),
		Admin:   handler.NewAdminHandler(cardService, giftingService),
		Catalog: handler.NewCatalogHandler(catalogService),
		Billing: handler.NewBillingHandler(billingService),
		Webhook: handler.NewWebhookHandler(fulfillmentService, cfg.Stripe.WebhookSecret),
	})

	logger.Info("Swagger documentation available", zap.String("url", swaggerURL(cfg.SwaggerHost, cfg.ServerPort)))

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

// swaggerURL builds the documentation URL. SwaggerHost may already include
// a scheme.
func swaggerURL(host, port string) string {
	switch {
	case host == "":
		return "http://localhost:" + port + "/swagger/index.html"
	case strings.HasPrefix(host, "http://"), strings.HasPrefix(host, "https://"):
		return host + "/swagger/index.html"
	default:
		return "http://" + host + "/swagger/index.html"
	}
}
