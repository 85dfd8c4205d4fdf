package testutil

import (
	"context"
	"sync"

	"github.com/dafibh/spendbook/internal/domain"
	"github.com/dafibh/spendbook/internal/websocket"
)

// MockExpenseRepository is a mock implementation of domain.ExpenseRepository
type MockExpenseRepository struct {
	Expenses []*domain.Expense
	ListFn   func(ctx context.Context) ([]*domain.Expense, error)
	CreateFn func(ctx context.Context, expense *domain.Expense) (*domain.Expense, error)
	UpdateFn func(ctx context.Context, id string, patch domain.ExpensePatch) (*domain.Expense, error)
	DeleteFn func(ctx context.Context, id string) error
	mu       sync.Mutex
}

// NewMockExpenseRepository creates a new MockExpenseRepository
func NewMockExpenseRepository() *MockExpenseRepository {
	return &MockExpenseRepository{
		Expenses: make([]*domain.Expense, 0),
	}
}

// List returns all expenses in insertion order
func (m *MockExpenseRepository) List(ctx context.Context) ([]*domain.Expense, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Expense, len(m.Expenses))
	copy(result, m.Expenses)
	return result, nil
}

// Create appends an expense, rejecting duplicate ids
func (m *MockExpenseRepository) Create(ctx context.Context, expense *domain.Expense) (*domain.Expense, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, expense)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Expenses {
		if e.ID == expense.ID {
			return nil, domain.ErrAlreadyExists
		}
	}
	stored := *expense
	m.Expenses = append(m.Expenses, &stored)
	return &stored, nil
}

// Update merges a patch over an existing expense
func (m *MockExpenseRepository) Update(ctx context.Context, id string, patch domain.ExpensePatch) (*domain.Expense, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.Expenses {
		if e.ID == id {
			merged := patch.Apply(*e)
			m.Expenses[i] = &merged
			return &merged, nil
		}
	}
	return nil, domain.ErrExpenseNotFound
}

// Delete removes every expense with the given id
func (m *MockExpenseRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]*domain.Expense, 0, len(m.Expenses))
	for _, e := range m.Expenses {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	m.Expenses = kept
	return nil
}

// AddExpense adds an expense to the mock repository (helper for tests)
func (m *MockExpenseRepository) AddExpense(expense *domain.Expense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Expenses = append(m.Expenses, expense)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	Events []websocket.Event
	mu     sync.Mutex
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		Events: make([]websocket.Event, 0),
	}
}

// Publish records the event
func (m *MockEventPublisher) Publish(event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// GetEvents returns a copy of the recorded events
func (m *MockEventPublisher) GetEvents() []websocket.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]websocket.Event, len(m.Events))
	copy(events, m.Events)
	return events
}
