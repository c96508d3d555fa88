// Package memory provides the owned in-memory record collection that every
// higher layer operates on, plus an ephemeral persister for tests.
package memory

import (
	"fmt"
	"sync"

	"gymledger/pkg/domain"
)

// DefaultCapacity bounds the number of records a Store accepts.
const DefaultCapacity = 100

// FirstID is the id assigned to the first member of an empty store.
const FirstID = 1001

// Store is an ordered keyed collection of member records. It assigns ids,
// enforces the capacity bound and refuses to remove active records. It has no
// notion of dates; status is maintained by the lifecycle engine.
type Store struct {
	mu       sync.RWMutex
	records  []domain.Member
	nextID   int
	capacity int
}

// NewStore returns an empty store. A non-positive capacity selects
// DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{nextID: FirstID, capacity: capacity}
}

// Capacity returns the configured maximum record count.
func (s *Store) Capacity() int { return s.capacity }

// Len returns the current record count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// NextID returns the id the next Insert will assign.
func (s *Store) NextID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

// Insert appends m under a freshly allocated id and returns the stored copy.
func (s *Store) Insert(m domain.Member) (domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) >= s.capacity {
		return domain.Member{}, fmt.Errorf("insert: %w (%d)", domain.ErrCapacityReached, s.capacity)
	}
	m.ID = s.nextID
	s.nextID++
	s.records = append(s.records, m)
	return m, nil
}

// Restore appends a previously persisted record keeping its id. The id
// allocator is advanced past it so ids are never handed out twice.
func (s *Store) Restore(m domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID <= 0 {
		return &domain.ValidationError{Field: "id", Value: fmt.Sprint(m.ID), Reason: "must be positive"}
	}
	if s.indexOf(m.ID) >= 0 {
		return fmt.Errorf("restore %d: %w", m.ID, domain.ErrDuplicateID)
	}
	if len(s.records) >= s.capacity {
		return fmt.Errorf("restore %d: %w (%d)", m.ID, domain.ErrCapacityReached, s.capacity)
	}
	s.records = append(s.records, m)
	if m.ID >= s.nextID {
		s.nextID = m.ID + 1
	}
	return nil
}

// Get looks up a record by id.
func (s *Store) Get(id int) (domain.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.Member{}, false
	}
	return s.records[i], true
}

// List returns a copy of every record in insertion order.
func (s *Store) List() []domain.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Member, len(s.records))
	copy(out, s.records)
	return out
}

// Update applies mutator to a copy of the record and commits it only when the
// mutator succeeds. The id cannot be changed.
func (s *Store) Update(id int, mutator func(*domain.Member) error) (domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.Member{}, domain.NotFoundError{ID: id}
	}
	current := s.records[i]
	if err := mutator(&current); err != nil {
		return domain.Member{}, err
	}
	current.ID = id
	s.records[i] = current
	return current, nil
}

// Remove deletes an inactive record. Active records are refused with
// ErrMemberStillActive and left untouched.
func (s *Store) Remove(id int) (domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.Member{}, domain.NotFoundError{ID: id}
	}
	victim := s.records[i]
	if victim.Active {
		return domain.Member{}, &domain.PolicyError{ID: id, Rule: domain.ErrMemberStillActive, Reason: "deactivate it or wait for it to lapse first"}
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	return victim, nil
}

// Reset drops every record. The id allocator keeps its position.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

func (s *Store) indexOf(id int) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}
