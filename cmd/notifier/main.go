package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/orderflow-saga/internal/config"
	"github.com/joao-fontenele/orderflow-saga/internal/dedup"
	"github.com/joao-fontenele/orderflow-saga/internal/domain"
	"github.com/joao-fontenele/orderflow-saga/internal/messaging"
	"github.com/joao-fontenele/orderflow-saga/internal/notification"
	"github.com/joao-fontenele/orderflow-saga/internal/telemetry"
)

const serviceName = "notifier"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Notifier
	if err := config.Load(&cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("notifier stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Notifier, logger *slog.Logger) error {
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

	store, closeStore, err := openDedupStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	consumerMetrics, err := telemetry.GlobalConsumerMetrics()
	if err != nil {
		return err
	}
	guard := dedup.NewGuard(store, cfg.DedupRetention, consumerMetrics, logger)

	var notifier notification.Notifier
	if cfg.WebhookURL != "" {
		notifier = notification.NewWebhookNotifier(cfg.WebhookURL, &http.Client{
			Timeout:   cfg.WebhookTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		})
	} else {
		logger.Warn("WEBHOOK_URL not set, notifications are only logged")
		notifier = notification.NewLogNotifier(logger)
	}

	handler := notification.NewHandler(guard, notifier, logger)

	placed := messaging.NewConsumer(cfg.KafkaBrokers, domain.TopicOrderPlaced, cfg.ConsumerGroup, logger,
		messaging.WithRetryInterval(cfg.RetryInitial, cfg.RetryMax))
	defer func() { _ = placed.Close() }()
	cancelled := messaging.NewConsumer(cfg.KafkaBrokers, domain.TopicOrderCancelled, cfg.ConsumerGroup, logger,
		messaging.WithRetryInterval(cfg.RetryInitial, cfg.RetryMax))
	defer func() { _ = cancelled.Close() }()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	server := &http.Server{
		Addr:        ":" + cfg.MetricsPort,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return consume(ctx, placed, handler.HandleOrderPlaced, logger) })
	g.Go(func() error { return consume(ctx, cancelled, handler.HandleOrderCancelled, logger) })

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func consume(ctx context.Context, consumer *messaging.Consumer, handle messaging.Handler, logger *slog.Logger) error {
	logger.Info("starting consumer", "topic", consumer.Topic())

	if err := consumer.Consume(ctx, handle); err != nil {
		if ctx.Err() != nil {
			logger.Info("consumer stopped", "topic", consumer.Topic())
			return nil
		}
		return err
	}
	return nil
}

func openDedupStore(ctx context.Context, cfg config.Notifier, logger *slog.Logger) (dedup.Store, func(), error) {
	if cfg.DedupBackend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		logger.Info("dedup store ready", "backend", "redis", "addr", cfg.RedisAddr)
		return dedup.NewRedisStore(client), func() { _ = client.Close() }, nil
	}

	store := dedup.NewMemoryStore(cfg.DedupCapacity)
	logger.Info("dedup store ready", "backend", "memory", "capacity", cfg.DedupCapacity)
	return store, store.Close, nil
}

func shutdown(logger *slog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error("telemetry shutdown failed", "provider", name, "error", err)
	}
}
