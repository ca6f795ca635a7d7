package main

import (
	"context"
	"github.com/ariefcatur/storefront-fulfillment/internal/app"
	"github.com/ariefcatur/storefront-fulfillment/internal/config"
	kafkax "github.com/ariefcatur/storefront-fulfillment/internal/kafka"
	"github.com/ariefcatur/storefront-fulfillment/internal/logging"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"github.com/ariefcatur/storefront-fulfillment/internal/payments"
	"github.com/ariefcatur/storefront-fulfillment/internal/redisx"
	"github.com/ariefcatur/storefront-fulfillment/internal/tracing"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.StoreDriver != "postgres" {
		log.Fatalf("payments consumer needs STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
	}
	lg, err := logging.New(cfg.LogLevel, cfg.ServiceName+"-payments")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName+"-payments", cfg.OTelEndpoint)
	if err != nil {
		lg.Fatal("tracing init", zap.Error(err))
	}

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("wire app", zap.Error(err))
	}

	h := &payments.Handler{
		Payer: a.Service,
		Dedup: redisx.NewDedup(a.Redis, "payments"),
		Log:   lg.Named("payments"),
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentsGroup, orders.TopicPaymentSucceeded, cfg.PaymentsWorkers, lg.Named("consumer"))

	lg.Info("payments consumer started",
		zap.String("group", cfg.PaymentsGroup),
		zap.String("topic", orders.TopicPaymentSucceeded),
		zap.Int("workers", cfg.PaymentsWorkers))
	if err := cons.Start(ctx, h.HandlePaymentSucceeded); err != nil {
		lg.Error("consumer exit", zap.Error(err))
	}

	lg.Info("shutting down consumer")
	a.Close()
	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownTracing(tctx)
}
