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
	"github.com/joao-fontenele/orderflow-saga/internal/messaging"
	"github.com/joao-fontenele/orderflow-saga/internal/orders"
	"github.com/joao-fontenele/orderflow-saga/internal/telemetry"
)

const serviceName = "orders"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Orders
	if err := config.Load(&cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("orders service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Orders, logger *slog.Logger) error {
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

	dsn, err := config.WithSearchPath(cfg.PostgresURL, "orders")
	if err != nil {
		return err
	}
	db, err := telemetry.OpenDB(ctx, "postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var publisher orders.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers)
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}

	sagaMetrics, err := telemetry.GlobalSagaMetrics()
	if err != nil {
		return err
	}

	httpClient := &http.Client{
		Timeout:   cfg.ClientTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	policy := clients.Policy{
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		ReadRetries:      cfg.ReadRetries,
		RetryInterval:    cfg.RetryInterval,
	}

	cart := clients.NewResilientCartClient(
		clients.NewHTTPCartClient(cfg.CartServiceURL, httpClient),
		clients.NewFallbackCartClient(logger), policy, logger)
	inventory := clients.NewResilientInventoryClient(
		clients.NewHTTPInventoryClient(cfg.InventoryServiceURL, httpClient),
		clients.NewFallbackInventoryClient(logger), policy, logger)
	users := clients.NewResilientUserProfileClient(
		clients.NewHTTPUserProfileClient(cfg.UserServiceURL, httpClient),
		clients.NewFallbackUserProfileClient(logger), policy, logger)

	svc := orders.NewService(
		orders.NewOrderRepository(db),
		cart, inventory, users,
		publisher, sagaMetrics,
		orders.Options{
			StepTimeout:    cfg.StepTimeout,
			PublishTimeout: cfg.PublishTimeout,
			CancelTimeout:  cfg.CancelTimeout,
		},
		logger,
	)

	mux := http.NewServeMux()
	orders.NewHandler(svc, logger).Register(mux)
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", healthz(db))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      instrument(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return serve(ctx, server, logger)
}

func instrument(mux *http.ServeMux) http.Handler {
	h := chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		telemetry.WithHTTPRoute,
	).Handler(mux)
	return otelhttp.NewHandler(h, serviceName)
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

func serve(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting orders service", "addr", server.Addr)
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

	return g.Wait()
}

func shutdown(logger *slog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error("telemetry shutdown failed", "provider", name, "error", err)
	}
}
