package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gymledger/pkg/domain"
)

func TestServiceRunInstrumentsOperations(t *testing.T) {
	ctx := context.Background()
	log := &captureLogger{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc, _ := openAt(t, "2024-01-10", member(1001, "2024-01-01", domain.PlanYearly, true, 0))
	WithLogger(log)(svc)
	WithMetricsRecorder(metrics)(svc)
	WithTracer(tracer)(svc)

	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := svc.Renew(ctx, 1001, "monthly"); err == nil {
		t.Fatalf("expected refusal")
	}
	if !metrics.has("list", true) || !metrics.has("renew", false) {
		t.Fatalf("unexpected metrics %+v", metrics.calls)
	}
	if len(tracer.started) != 2 || len(tracer.ended) != 2 || tracer.ended[1].err == nil {
		t.Fatalf("unexpected spans %+v", tracer.ended)
	}
	if !log.has("d:operation completed") || !log.has("w:operation refused") {
		t.Fatalf("unexpected log calls %v", log.calls)
	}
}

func TestPersistenceFailuresLogAtErrorLevel(t *testing.T) {
	log := &captureLogger{}
	svc, p := openAt(t, "2024-01-10", member(1001, "2024-01-01", domain.PlanYearly, true, 0))
	WithLogger(log)(svc)
	p.FailNextSave(errors.New("boom"))
	if _, _, err := svc.Deactivate(context.Background(), 1001); err == nil {
		t.Fatalf("expected save failure")
	}
	if !log.has("e:operation failed") {
		t.Fatalf("expected error log, got %v", log.calls)
	}
}

func TestNilOptionsKeepDefaults(t *testing.T) {
	svc := NewService(nil, nil, WithLogger(nil), WithMetricsRecorder(nil), WithTracer(nil), WithClock(nil), WithNearExpiryWindow(-3))
	if _, ok := svc.logger.(noopLogger); !ok {
		t.Fatalf("nil logger should keep the noop default")
	}
	if svc.window != DefaultNearExpiryWindow {
		t.Fatalf("invalid window should be ignored, got %d", svc.window)
	}
	if _, err := svc.List(context.Background()); err != nil {
		t.Fatalf("list with defaults: %v", err)
	}
	noopLogger{}.Error("ignored", "k", "v")
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.Observe(context.Background(), "add", true, 3*time.Millisecond)
	rec.Observe(context.Background(), "add", false, time.Millisecond)
	rec.Observe(context.Background(), "add", true, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	var observations uint64
	for _, mf := range families {
		switch mf.GetName() {
		case "gymledger_operations_total":
			for _, m := range mf.GetMetric() {
				var op, status string
				for _, l := range m.GetLabel() {
					switch l.GetName() {
					case "operation":
						op = l.GetValue()
					case "status":
						status = l.GetValue()
					}
				}
				counts[op+"/"+status] = m.GetCounter().GetValue()
			}
		case "gymledger_operation_duration_seconds":
			for _, m := range mf.GetMetric() {
				observations += m.GetHistogram().GetSampleCount()
			}
		}
	}
	if counts["add/success"] != 2 || counts["add/error"] != 1 || len(counts) != 2 {
		t.Fatalf("unexpected counters %v", counts)
	}
	if observations != 3 {
		t.Fatalf("expected 3 latency observations, got %d", observations)
	}

	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("registering twice on one registry should fail")
	}
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	svc, _ := openAt(t, "2024-01-10")
	WithTracer(tracer)(svc)
	if _, err := svc.Get(context.Background(), 1); err == nil {
		t.Fatalf("expected not found")
	}
	if _, err := svc.List(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Operation != "get" || entries[0].Status != "error" || entries[1].Status != "success" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two json lines, got %q", buf.String())
	}
	var first JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil || !strings.Contains(first.Error, "not found") {
		t.Fatalf("decode line: %v %+v", err, first)
	}

	silent := NewJSONTracer(nil)
	_, span := silent.Start(context.Background(), "x")
	span.End(nil)
	if len(silent.Entries()) != 1 {
		t.Fatalf("nil writer tracer should still retain entries")
	}
}
