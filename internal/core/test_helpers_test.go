package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gymledger/internal/infra/persistence/memory"
	"gymledger/pkg/calendar"
	"gymledger/pkg/domain"
)

type stubClock struct{ t time.Time }

func (s stubClock) Now() time.Time { return s.t }

// clockAt returns a clock reporting noon on the given day.
func clockAt(day string) stubClock {
	d := calendar.MustParse(day)
	return stubClock{t: time.Date(d.Year, time.Month(d.Month), d.Day, 12, 0, 0, 0, time.Local)}
}

type captureLogger struct{ calls []string }

func (c *captureLogger) Debug(msg string, _ ...any) { c.calls = append(c.calls, "d:"+msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.calls = append(c.calls, "i:"+msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.calls = append(c.calls, "w:"+msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.calls = append(c.calls, "e:"+msg) }

func (c *captureLogger) has(entry string) bool {
	for _, call := range c.calls {
		if call == entry {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct{ calls []metricsCall }

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func member(id int, join string, plan domain.PlanType, active bool, bonus int) domain.Member {
	return domain.Member{
		ID:        id,
		Name:      fmt.Sprintf("m%d", id),
		Gender:    domain.GenderMale,
		Age:       30,
		Phone:     "13800138000",
		JoinDate:  calendar.MustParse(join),
		Plan:      plan,
		Active:    active,
		BonusDays: bonus,
	}
}

// openAt opens a service over an in-memory persister seeded with members,
// evaluated on day.
func openAt(t *testing.T, day string, seed ...domain.Member) (*Service, *memory.Persister) {
	t.Helper()
	p := memory.NewPersister(seed...)
	svc, _, err := Open(context.Background(), p, memory.DefaultCapacity, WithClock(clockAt(day)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return svc, p
}
