package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/orderflow-saga/internal/clients"
	"github.com/joao-fontenele/orderflow-saga/internal/config"
	"github.com/joao-fontenele/orderflow-saga/internal/domain"
	"github.com/joao-fontenele/orderflow-saga/internal/inventory"
	"github.com/joao-fontenele/orderflow-saga/internal/messaging"
	"github.com/joao-fontenele/orderflow-saga/internal/telemetry"
)

const serviceName = "inventory"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Inventory
	if err := config.Load(&cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("inventory service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Inventory, logger *slog.Logger) error {
	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, cfg.ServiceVersion)
		if err != nil {
			return err
		}
		defer shutdown(logger, "tracer", shutdownTracer)
	} else {
		telemetry.InstallPropagator()
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.ServiceVersion)
	if err != nil {
		return err
	}
	defer shutdown(logger, "meter", shutdownMeter)

	dsn, err := config.WithSearchPath(cfg.PostgresURL, "inventory")
	if err != nil {
		return err
	}
	db, err := telemetry.OpenDB(ctx, "postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	svc := inventory.NewService(inventory.NewPostgresStore(db), logger)

	if cfg.SeedEnabled {
		catalog := clients.NewHTTPProductCatalogClient(cfg.ProductServiceURL, &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		})
		if _, err := inventory.NewSeeder(catalog, svc, cfg.SeedDefaultQuantity, logger).Seed(ctx); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	inventory.NewHandler(svc, logger).Register(mux)
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", healthz(db))

	handler := chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		telemetry.WithHTTPRoute,
	).Handler(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(handler, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting inventory service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if len(cfg.KafkaBrokers) > 0 {
		consumer := messaging.NewConsumer(cfg.KafkaBrokers, domain.TopicProductCreated, cfg.ConsumerGroup, logger,
			messaging.WithRetryInterval(cfg.RetryInitial, cfg.RetryMax))
		defer func() { _ = consumer.Close() }()

		events := inventory.NewProductEventHandler(svc, logger)
		g.Go(func() error {
			logger.Info("consuming product events", "topic", consumer.Topic(), "group", cfg.ConsumerGroup)
			if err := consumer.Consume(ctx, events.Handle); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	} else {
		logger.Warn("KAFKA_BROKERS not set, product events will not be consumed")
	}

	return g.Wait()
}

func healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func shutdown(logger *slog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error("telemetry shutdown failed", "provider", name, "error", err)
	}
}
