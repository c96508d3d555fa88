package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gymledger/internal/blob"
	"gymledger/internal/infra/persistence/memory"
	"gymledger/pkg/calendar"
	"gymledger/pkg/domain"
)

// Service is the operator-facing API over the member store. Every operation
// first brings cached status up to date, and every mutation is followed by a
// full save through the configured persister. When that save fails the
// mutation stays applied in memory and a *domain.PersistenceError is returned
// alongside the result; Save retries.
type Service struct {
	mu        sync.Mutex
	store     *memory.Store
	persister domain.Persister
	backups   blob.Store

	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	window  int
}

// LoadReport summarises what Open found in durable storage.
type LoadReport struct {
	Source string
	// Loaded records were restored into the store.
	Loaded int
	// Skipped lines or rows failed to decode or validate.
	Skipped int
	// Rejected records were valid but duplicated an id or exceeded capacity.
	Rejected int
	// Expired records were deactivated by the post-load sync.
	Expired int
}

// NewService wires a service around an existing store.
func NewService(store *memory.Store, persister domain.Persister, opts ...ServiceOption) *Service {
	if store == nil {
		store = memory.NewStore(memory.DefaultCapacity)
	}
	if persister == nil {
		persister = memory.NewPersister()
	}
	svc := &Service{
		store:     store,
		persister: persister,
		clock:     ClockFunc(nil),
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		tracer:    noopTracer{},
		window:    DefaultNearExpiryWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Open hydrates a new store of the given capacity from persister and syncs
// status once. A load error is returned as-is (wrapped in a
// PersistenceError): the caller must not continue, or the next save would
// overwrite data that could not be read.
func Open(ctx context.Context, persister domain.Persister, capacity int, opts ...ServiceOption) (*Service, LoadReport, error) {
	svc := NewService(memory.NewStore(capacity), persister, opts...)
	report := LoadReport{Source: svc.persister.Describe()}
	err := svc.run(ctx, "open", func(ctx context.Context) error {
		res, err := svc.persister.Load(ctx)
		if err != nil {
			return &domain.PersistenceError{Op: "load " + report.Source, Err: err}
		}
		report.Skipped = res.Skipped
		for _, issue := range res.Issues {
			svc.logger.Warn("record skipped", "source", report.Source, "position", issue.Position, "reason", issue.Reason)
		}
		for _, m := range res.Members {
			if err := svc.store.Restore(m); err != nil {
				report.Rejected++
				svc.logger.Warn("record not restored", "id", m.ID, "error", err)
				continue
			}
			report.Loaded++
		}
		report.Expired = svc.syncLocked(svc.today())
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	if report.Skipped > 0 {
		svc.logger.Warn("skipped unreadable records", "source", report.Source, "count", report.Skipped)
	}
	svc.logger.Info("member store loaded",
		"source", report.Source,
		"loaded", report.Loaded,
		"rejected", report.Rejected,
		"expired", report.Expired,
		"next_id", svc.store.NextID(),
	)
	return svc, report, nil
}

// Store returns the underlying record store.
func (s *Service) Store() *memory.Store { return s.store }

// Persister returns the configured persister.
func (s *Service) Persister() domain.Persister { return s.persister }

// Today is the calendar day the lifecycle engine currently evaluates against.
func (s *Service) Today() calendar.Date { return s.today() }

// Close releases the persister when it holds resources.
func (s *Service) Close() error {
	if c, ok := s.persister.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Service) today() calendar.Date {
	return calendar.FromTime(s.clock.Now())
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	s.mu.Lock()
	err := fn(ctx)
	s.mu.Unlock()
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	switch {
	case err == nil:
		s.logger.Debug("operation completed", "op", op, "duration", time.Since(start))
	case errors.Is(err, domain.ErrPersistence):
		s.logger.Error("operation failed", "op", op, "error", err)
	default:
		s.logger.Warn("operation refused", "op", op, "error", err)
	}
	return err
}

// syncLocked deactivates lapsed records and returns how many changed.
func (s *Service) syncLocked(today calendar.Date) int {
	changed := 0
	for _, m := range s.store.List() {
		if !m.Active || !m.Lapsed(today) {
			continue
		}
		if _, err := s.store.Update(m.ID, func(rec *domain.Member) error {
			expire(rec, today)
			return nil
		}); err == nil {
			changed++
			s.logger.Info("membership expired", "id", m.ID, "expiry", m.ExpiryDate().String())
		}
	}
	return changed
}

func (s *Service) persistLocked(ctx context.Context) error {
	members := s.store.List()
	if err := s.persister.Save(ctx, members); err != nil {
		return &domain.PersistenceError{Op: "save " + s.persister.Describe(), Err: err}
	}
	s.logger.Debug("member store saved", "target", s.persister.Describe(), "records", len(members))
	return nil
}

// Sync brings every cached Active flag up to date and returns the number of
// records it deactivated. Status changes made by sync are written with the
// next mutation or an explicit Save.
func (s *Service) Sync(ctx context.Context) (int, error) {
	var n int
	err := s.run(ctx, "sync", func(context.Context) error {
		n = s.syncLocked(s.today())
		return nil
	})
	return n, err
}

// List returns every record in insertion order.
func (s *Service) List(ctx context.Context) ([]domain.Member, error) {
	var out []domain.Member
	err := s.run(ctx, "list", func(context.Context) error {
		s.syncLocked(s.today())
		out = s.store.List()
		return nil
	})
	return out, err
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id int) (domain.Member, error) {
	var out domain.Member
	err := s.run(ctx, "get", func(context.Context) error {
		s.syncLocked(s.today())
		m, ok := s.store.Get(id)
		if !ok {
			return domain.NotFoundError{ID: id}
		}
		out = m
		return nil
	})
	return out, err
}

// RemainingDays returns expiry - today for an active record. The boolean is
// false for inactive records, for which the figure is not applicable.
func (s *Service) RemainingDays(ctx context.Context, id int) (int, bool, error) {
	var (
		left int
		ok   bool
	)
	err := s.run(ctx, "remaining_days", func(context.Context) error {
		today := s.today()
		s.syncLocked(today)
		m, found := s.store.Get(id)
		if !found {
			return domain.NotFoundError{ID: id}
		}
		left, ok = m.DaysLeft(today)
		return nil
	})
	return left, ok, err
}

// SearchByName returns records whose name contains keyword.
func (s *Service) SearchByName(ctx context.Context, keyword string) ([]domain.Member, error) {
	var out []domain.Member
	err := s.run(ctx, "search", func(context.Context) error {
		if strings.TrimSpace(keyword) == "" {
			return &domain.ValidationError{Field: "keyword", Value: keyword, Reason: "must not be empty"}
		}
		s.syncLocked(s.today())
		for _, m := range s.store.List() {
			if strings.Contains(m.Name, keyword) {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

// Add validates in, registers it as an active member joining today and saves.
func (s *Service) Add(ctx context.Context, in domain.NewMember) (domain.Member, error) {
	var out domain.Member
	err := s.run(ctx, "add", func(ctx context.Context) error {
		m, err := in.Build()
		if err != nil {
			return err
		}
		today := s.today()
		s.syncLocked(today)
		m.JoinDate = today
		m.Active = true
		m.BonusDays = 0
		created, err := s.store.Insert(m)
		if err != nil {
			return err
		}
		out = created
		s.logger.Info("member added", "id", created.ID, "plan", string(created.Plan))
		return s.persistLocked(ctx)
	})
	return out, err
}

// UpdatePhone replaces the phone number of a record and saves.
func (s *Service) UpdatePhone(ctx context.Context, id int, phone string) (domain.Member, error) {
	var out domain.Member
	err := s.run(ctx, "update_phone", func(ctx context.Context) error {
		if err := domain.ValidatePhone(phone); err != nil {
			return err
		}
		s.syncLocked(s.today())
		updated, err := s.store.Update(id, func(m *domain.Member) error {
			m.Phone = phone
			return nil
		})
		if err != nil {
			return err
		}
		out = updated
		return s.persistLocked(ctx)
	})
	return out, err
}

// Renew applies the renewal policy with the plan named by planToken and saves.
func (s *Service) Renew(ctx context.Context, id int, planToken string) (Renewal, error) {
	var out Renewal
	err := s.run(ctx, "renew", func(ctx context.Context) error {
		plan, err := domain.ParsePlanType(planToken)
		if err != nil {
			return err
		}
		today := s.today()
		s.syncLocked(today)
		var (
			kind  RenewalKind
			added int
		)
		updated, err := s.store.Update(id, func(m *domain.Member) error {
			var rerr error
			kind, added, rerr = renew(m, plan, today)
			return rerr
		})
		if err != nil {
			return err
		}
		out = Renewal{Kind: kind, Member: updated, AddedDays: added, Expiry: updated.ExpiryDate()}
		s.logger.Info("membership renewed", "id", id, "kind", string(kind), "expiry", out.Expiry.String())
		return s.persistLocked(ctx)
	})
	return out, err
}

// Deactivate marks a record inactive and saves. An already inactive record
// is reported through changed=false; nothing is written in that case.
func (s *Service) Deactivate(ctx context.Context, id int) (domain.Member, bool, error) {
	var (
		out     domain.Member
		changed bool
	)
	err := s.run(ctx, "deactivate", func(ctx context.Context) error {
		s.syncLocked(s.today())
		updated, err := s.store.Update(id, func(m *domain.Member) error {
			changed = m.Active
			m.Active = false
			return nil
		})
		if err != nil {
			return err
		}
		out = updated
		if !changed {
			return nil
		}
		return s.persistLocked(ctx)
	})
	return out, changed, err
}

// Delete removes an inactive record and saves. Active records are refused
// with a policy error matching domain.ErrMemberStillActive.
func (s *Service) Delete(ctx context.Context, id int) (domain.Member, error) {
	var out domain.Member
	err := s.run(ctx, "delete", func(ctx context.Context) error {
		s.syncLocked(s.today())
		removed, err := s.store.Remove(id)
		if err != nil {
			return err
		}
		out = removed
		s.logger.Info("member deleted", "id", id)
		return s.persistLocked(ctx)
	})
	return out, err
}

// NearExpiry lists active members whose remaining days fall within the
// configured window, today included.
func (s *Service) NearExpiry(ctx context.Context) ([]ExpiringMember, error) {
	var out []ExpiringMember
	err := s.run(ctx, "near_expiry", func(context.Context) error {
		today := s.today()
		s.syncLocked(today)
		out = nearExpiry(s.store.List(), today, s.window)
		return nil
	})
	return out, err
}

// Statistics reports totals, per-plan shares of active members and the
// near-expiry list.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	var out Statistics
	err := s.run(ctx, "statistics", func(context.Context) error {
		today := s.today()
		s.syncLocked(today)
		out = computeStatistics(s.store.List(), today, s.window)
		return nil
	})
	return out, err
}

// Save writes the full store. It is the retry path after a failed save.
func (s *Service) Save(ctx context.Context) error {
	return s.run(ctx, "save", func(ctx context.Context) error {
		return s.persistLocked(ctx)
	})
}

// ErrStoreNotEmpty is returned by SeedDemo when records already exist.
var ErrStoreNotEmpty = errors.New("store already holds records")

// SeedDemo fills an empty store with four demonstration members whose join
// dates are placed relative to today so that every status is represented.
func (s *Service) SeedDemo(ctx context.Context) ([]domain.Member, error) {
	var out []domain.Member
	err := s.run(ctx, "seed", func(ctx context.Context) error {
		if n := s.store.Len(); n > 0 {
			return fmt.Errorf("seed demo data: %w (%d)", ErrStoreNotEmpty, n)
		}
		today := s.today()
		for _, m := range demoMembers(today) {
			created, err := s.store.Insert(m)
			if err != nil {
				return err
			}
			out = append(out, created)
		}
		s.syncLocked(today)
		out = s.store.List()
		return s.persistLocked(ctx)
	})
	return out, err
}

func demoMembers(today calendar.Date) []domain.Member {
	return []domain.Member{
		{Name: "张三", Gender: domain.GenderMale, Age: 25, Phone: "13800138000", JoinDate: today.AddDays(-120), Plan: domain.PlanYearly, Active: true},
		{Name: "李四", Gender: domain.GenderFemale, Age: 30, Phone: "13912345678", JoinDate: today.AddDays(-400), Plan: domain.PlanMonthly, Active: false},
		{Name: "王五", Gender: domain.GenderMale, Age: 45, Phone: "13666666666", JoinDate: today.AddDays(-10), Plan: domain.PlanMonthly, Active: true},
		{Name: "赵六", Gender: domain.GenderFemale, Age: 22, Phone: "13777777777", JoinDate: today.AddDays(-75), Plan: domain.PlanQuarterly, Active: true},
	}
}
