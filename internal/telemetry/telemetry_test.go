package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	sums := make(map[string]metricdata.Sum[int64])
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				sums[m.Name] = s
			}
		}
	}
	return sums
}

func TestSagaMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewSagaMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewSagaMetrics: %v", err)
	}

	ctx := context.Background()
	m.OrderPlaced(ctx)
	m.OrderPlaced(ctx)
	m.Compensation(ctx, "failed")

	sums := collect(t, reader)

	placed := sums["orders.placed"]
	if len(placed.DataPoints) != 1 || placed.DataPoints[0].Value != 2 {
		t.Errorf("orders.placed = %+v, want a single point of 2", placed.DataPoints)
	}

	comp := sums["orders.compensations"]
	if len(comp.DataPoints) != 1 {
		t.Fatalf("orders.compensations points = %d, want 1", len(comp.DataPoints))
	}
	if v, _ := comp.DataPoints[0].Attributes.Value(attribute.Key("outcome")); v.AsString() != "failed" {
		t.Errorf("outcome = %q, want failed", v.AsString())
	}
}

func TestConsumerMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewConsumerMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewConsumerMetrics: %v", err)
	}

	ctx := context.Background()
	m.Processed(ctx, "order.placed")
	m.Skipped(ctx, "order.placed")
	m.Skipped(ctx, "order.placed")

	sums := collect(t, reader)
	if got := sums["events.duplicates.skipped"].DataPoints[0].Value; got != 2 {
		t.Errorf("skipped = %d, want 2", got)
	}
}

func TestNoopMetrics(t *testing.T) {
	ctx := context.Background()
	NoopSagaMetrics().PlaceFailed(ctx, "conflict")
	NoopConsumerMetrics().Processed(ctx, "order.cancelled")
}

func TestWithHTTPRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := WithHTTPRoute(mux)

	ctx, span := tp.Tracer("test").Start(context.Background(), "request")
	req := httptest.NewRequest(http.MethodGet, "/orders/abc", nil).WithContext(ctx)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	for _, attr := range ended[0].Attributes() {
		if attr.Key == "http.route" {
			if attr.Value.AsString() != "GET /orders/{id}" {
				t.Errorf("http.route = %q", attr.Value.AsString())
			}
			return
		}
	}
	t.Error("http.route attribute not set")
}
