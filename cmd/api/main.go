package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/01moynul/taptosell-checkout/internal/auth"
	"github.com/01moynul/taptosell-checkout/internal/checkout"
	"github.com/01moynul/taptosell-checkout/internal/config"
	"github.com/01moynul/taptosell-checkout/internal/database"
	"github.com/01moynul/taptosell-checkout/internal/eventlog"
	"github.com/01moynul/taptosell-checkout/internal/handlers"
	"github.com/01moynul/taptosell-checkout/internal/metrics"
	"github.com/01moynul/taptosell-checkout/internal/routes"
	"github.com/01moynul/taptosell-checkout/internal/store"
	"github.com/01moynul/taptosell-checkout/internal/store/memory"
)

func main() {
	// 0. --- Load Environment Variables (.env) ---
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.NewTokens(cfg.JWTSecret, auth.DefaultTTL)
	if err != nil {
		log.Fatalf("CRITICAL ERROR: JWT_SECRET environment variable is not set: %v", err)
	}

	// 1. --- Metrics Registry ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 2. --- Store ---
	var st store.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Println("WARNING: STORE_DRIVER=memory, orders are lost on restart")
		st = memory.New()
	case config.DriverMySQL:
		db, err := database.OpenDB(cfg.DSN, cfg.MaxOpenConns)
		if err != nil {
			log.Fatalf("Failed to connect to primary database: %v", err)
		}
		defer db.Close()

		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		st = store.NewMySQL(db)

		// 3. --- Background Worker: event relay ---
		if publisher := eventlog.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic); publisher != nil {
			defer publisher.Close()
			relay := &eventlog.Relay{
				Source:      eventlog.NewSQLSource(db),
				Publisher:   publisher,
				BatchSize:   cfg.RelayBatchSize,
				Interval:    cfg.RelayInterval,
				SettleDelay: 2*cfg.CheckoutTimeout + time.Second,
				Metrics:     metrics.NewRelayMetrics(reg),
			}
			go relay.Run(ctx)
		} else {
			log.Println("KAFKA_BROKERS not set, purchase events stay in event_logs only")
		}
	default:
		log.Fatalf("Unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	// --- Application Setup ---
	app := &handlers.Handlers{
		Store:           st,
		CheckoutService: checkout.NewService(st, cfg.CheckoutTimeout, metrics.NewCheckoutMetrics(reg)),
	}

	// --- Router Setup ---
	router := routes.SetupRouter(app, routes.Options{
		CORSOrigin: cfg.CORSOrigin,
		Tokens:     tokens,
		Metrics:    metrics.NewServerMetrics(reg),
		Gatherer:   reg,
	})

	// --- Start Server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("Starting TapToSell checkout API server on port %s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
