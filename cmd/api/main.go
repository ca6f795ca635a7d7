package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/storefront-fulfillment/internal/app"
	"github.com/ariefcatur/storefront-fulfillment/internal/config"
	"github.com/ariefcatur/storefront-fulfillment/internal/httpx"
	"github.com/ariefcatur/storefront-fulfillment/internal/logging"
	"github.com/ariefcatur/storefront-fulfillment/internal/tracing"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"log"
	"net/http"
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
	lg, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		lg.Fatal("tracing init", zap.Error(err))
	}

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("wire app", zap.Error(err))
	}

	router := httpx.NewRouter(lg.Named("http"))
	oh := &httpx.OrdersHandler{Engine: a.Service, Log: lg.Named("http")}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		lg.Error("server exit", zap.Error(err))
	}

	a.Close() // flush producer, close redis and db
	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownTracing(tctx)
}
