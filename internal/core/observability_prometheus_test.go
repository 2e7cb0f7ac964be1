package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorderCountsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("NewPrometheusMetricsRecorder: %v", err)
	}

	rec.Observe(context.Background(), "query", true, 5*time.Millisecond)
	rec.Observe(context.Background(), "query", true, 5*time.Millisecond)
	rec.Observe(context.Background(), "query", false, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("query", "success")); got != 2 {
		t.Fatalf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("query", "error")); got != 1 {
		t.Fatalf("error count = %v, want 1", got)
	}
}

func TestPrometheusRecorderRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("second registration on the same registry must fail")
	}
}
