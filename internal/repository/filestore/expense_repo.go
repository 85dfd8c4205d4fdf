package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dafibh/spendbook/internal/domain"
	"github.com/rs/zerolog/log"
)

// ExpenseRepository implements domain.ExpenseRepository on a single JSON file.
// Every mutation reads the whole file, mutates in memory and overwrites the
// whole file. The mutex serialises cycles within this process only; another
// process writing the same file can still lose updates.
type ExpenseRepository struct {
	path string
	mu   sync.Mutex
}

// NewExpenseRepository creates a repository backed by the file at path.
// The file does not need to exist yet.
func NewExpenseRepository(path string) *ExpenseRepository {
	return &ExpenseRepository{path: path}
}

// Path returns the backing file path
func (r *ExpenseRepository) Path() string {
	return r.path
}

// List returns every record in file order. An absent, unreadable or corrupt
// file yields an empty set.
func (r *ExpenseRepository) List(ctx context.Context) ([]*domain.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(), nil
}

// Create appends the expense and rewrites the file
func (r *ExpenseRepository) Create(ctx context.Context, expense *domain.Expense) (*domain.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expenses := r.load()
	for _, e := range expenses {
		if e.ID == expense.ID {
			return nil, domain.ErrAlreadyExists
		}
	}

	stored := *expense
	expenses = append(expenses, &stored)
	if err := r.save(expenses); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Update merges patch over the record with the given id and rewrites the file
func (r *ExpenseRepository) Update(ctx context.Context, id string, patch domain.ExpensePatch) (*domain.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expenses := r.load()
	idx := -1
	for i, e := range expenses {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, domain.ErrExpenseNotFound
	}

	merged := patch.Apply(*expenses[idx])
	expenses[idx] = &merged
	if err := r.save(expenses); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Delete removes every record with the given id. The file is rewritten even
// when nothing matched.
func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	expenses := r.load()
	kept := expenses[:0]
	for _, e := range expenses {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	return r.save(kept)
}

func (r *ExpenseRepository) load() []*domain.Expense {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", r.path).Msg("Failed to read data file, treating as empty")
		}
		return []*domain.Expense{}
	}

	var expenses []*domain.Expense
	if err := json.Unmarshal(raw, &expenses); err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("Data file is not a valid expense array, treating as empty")
		return []*domain.Expense{}
	}

	// A JSON null or stray null elements decode to nil pointers
	valid := make([]*domain.Expense, 0, len(expenses))
	for _, e := range expenses {
		if e != nil {
			valid = append(valid, e)
		}
	}
	return valid
}

func (r *ExpenseRepository) save(expenses []*domain.Expense) error {
	payload, err := json.MarshalIndent(expenses, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode expenses: %w", err)
	}
	if err := os.WriteFile(r.path, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}
	return nil
}

var _ domain.ExpenseRepository = (*ExpenseRepository)(nil)
