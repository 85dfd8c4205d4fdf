// Package ledger holds the client's cached record set and the pure
// computations over it: filtering, sorting, aggregation and budget checks.
package ledger

import (
	"sync"

	"github.com/dafibh/spendbook/internal/domain"
)

// State is the client cache of expenses. The Store remains authoritative;
// State only mirrors what the Store last echoed.
type State struct {
	mu      sync.RWMutex
	records []domain.Expense
}

// NewState creates an empty State
func NewState() *State {
	return &State{}
}

// Replace swaps the whole cache for records
func (s *State) Replace(records []domain.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]domain.Expense(nil), records...)
}

// Add appends a record
func (s *State) Add(record domain.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

// Put replaces the record with the same id in place. It reports whether a
// record was replaced.
func (s *State) Put(record domain.Expense) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == record.ID {
			s.records[i] = record
			return true
		}
	}
	return false
}

// Remove drops every record with id
func (s *State) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	for _, r := range s.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.records = kept
}

// Find returns the record with id
func (s *State) Find(id string) (domain.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Expense{}, false
}

// Records returns a copy of the cache in insertion order
func (s *State) Records() []domain.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Expense{}, s.records...)
}

// Len returns the number of cached records
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
