package memory

import (
	"context"
	"sync"

	"gymledger/pkg/domain"
)

var _ domain.Persister = (*Persister)(nil)

// Persister keeps the last saved record set in process memory. It backs the
// "memory" storage driver used by tests and throwaway sessions.
type Persister struct {
	mu       sync.Mutex
	snapshot []domain.Member
	saves    int
	failNext error
}

// NewPersister returns a persister seeded with the given records.
func NewPersister(seed ...domain.Member) *Persister {
	return &Persister{snapshot: append([]domain.Member(nil), seed...)}
}

// Load returns a copy of the last committed snapshot, skipping invalid records.
func (p *Persister) Load(_ context.Context) (domain.LoadResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var res domain.LoadResult
	for i, m := range p.snapshot {
		if err := m.Validate(); err != nil {
			res.Skip(i+1, err.Error())
			continue
		}
		res.Members = append(res.Members, m)
	}
	return res, nil
}

// Save replaces the snapshot with a copy of members.
func (p *Persister) Save(_ context.Context, members []domain.Member) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return err
	}
	p.snapshot = append([]domain.Member(nil), members...)
	p.saves++
	return nil
}

// Describe identifies the backend in logs.
func (p *Persister) Describe() string { return "memory" }

// Snapshot returns a copy of the committed records.
func (p *Persister) Snapshot() []domain.Member {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Member(nil), p.snapshot...)
}

// Saves reports how many saves have been committed.
func (p *Persister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// FailNextSave makes the next Save return err without committing.
func (p *Persister) FailNextSave(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}
