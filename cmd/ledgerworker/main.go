package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"giftcards/internal/config"
	"giftcards/internal/db"
	"giftcards/internal/events"
	"giftcards/internal/ledger"
	"giftcards/internal/lifecycle"
	"giftcards/internal/logger"
	"giftcards/internal/repository"
)

// ledgerworker replays card change events into the ledger. Entries are
// keyed by card version, so events already posted by the API are skipped.
func main() {
	cfg := config.Load()

	if err := logger.Init(cfg.Environment, cfg.LogFile); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.NATSURL == "" {
		logger.Fatal("NATS_URL is required")
	}

	gormDB, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("database init", zap.Error(err))
	}

	defaultRate, err := decimal.NewFromString(cfg.Billing.DefaultCommissionRate)
	if err != nil {
		logger.Fatal("invalid default commission rate", zap.Error(err))
	}
	synchronizer := ledger.NewSynchronizer(repository.NewStore(gormDB), defaultRate, cfg.Billing.Currency)

	conn, err := events.Connect(cfg.NATSURL)
	if err != nil {
		logger.Fatal("nats connect", zap.Error(err))
	}
	defer conn.Drain()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := events.Subscribe(ctx, conn, "ledgerworker", func(ctx context.Context, ev events.CardChanged) error {
		return synchronizer.Replay(ctx, ledger.Change{
			Op:     lifecycle.Operation(ev.Operation),
			Before: ev.Before,
			After:  ev.After,
		})
	})
	if err != nil {
		logger.Fatal("subscribe", zap.Error(err))
	}
	logger.Info("Ledger worker listening", zap.String("subject", events.SubjectCardChanged))

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil {
		logger.Warn("unsubscribe", zap.Error(err))
	}
	logger.Info("Ledger worker stopped")
}
