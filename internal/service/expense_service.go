package service

import (
	"context"
	"strings"

	"github.com/dafibh/spendbook/internal/domain"
	"github.com/dafibh/spendbook/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ExpenseService handles the store's expense operations
type ExpenseService struct {
	expenseRepo    domain.ExpenseRepository
	eventPublisher websocket.EventPublisher
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(expenseRepo domain.ExpenseRepository) *ExpenseService {
	return &ExpenseService{
		expenseRepo: expenseRepo,
	}
}

// SetEventPublisher sets the event publisher for change notifications
func (s *ExpenseService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *ExpenseService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// ListExpenses returns the full record set in storage order
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]*domain.Expense, error) {
	return s.expenseRepo.List(ctx)
}

// CreateExpense validates that id, amount, category and date are present and
// appends the record. Duplicate ids are rejected with domain.ErrAlreadyExists.
func (s *ExpenseService) CreateExpense(ctx context.Context, input domain.ExpensePatch) (*domain.Expense, error) {
	var fieldErrors []domain.FieldError
	for _, field := range input.MissingFields() {
		fieldErrors = append(fieldErrors, domain.FieldError{Field: field, Message: requiredMessage(field)})
	}
	if input.Amount != nil && input.Amount.IsNegative() {
		fieldErrors = append(fieldErrors, domain.FieldError{Field: "amount", Message: "Amount must be positive"})
	}
	fieldErrors = append(fieldErrors, validateNote(input.Note)...)
	if len(fieldErrors) > 0 {
		return nil, &domain.InvalidFieldsError{Fields: fieldErrors}
	}

	expense := input.ToExpense()
	created, err := s.expenseRepo.Create(ctx, &expense)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("expense_id", created.ID).
		Str("amount", created.Amount.String()).
		Str("category", created.Category).
		Msg("Expense created")
	s.publishEvent(websocket.ExpenseCreated(created))
	return created, nil
}

// UpdateExpense shallow-merges the supplied fields over the stored record.
// Fields present in the patch must be valid; absent fields keep their values.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id string, patch domain.ExpensePatch) (*domain.Expense, error) {
	var fieldErrors []domain.FieldError
	if patch.Amount != nil && patch.Amount.LessThanOrEqual(decimal.Zero) {
		fieldErrors = append(fieldErrors, domain.FieldError{Field: "amount", Message: "Amount must be positive"})
	}
	if patch.Category != nil && strings.TrimSpace(*patch.Category) == "" {
		fieldErrors = append(fieldErrors, domain.FieldError{Field: "category", Message: "Category cannot be empty"})
	}
	if patch.Date != nil && patch.Date.IsZero() {
		fieldErrors = append(fieldErrors, domain.FieldError{Field: "date", Message: "Date cannot be empty"})
	}
	fieldErrors = append(fieldErrors, validateNote(patch.Note)...)
	if len(fieldErrors) > 0 {
		return nil, &domain.InvalidFieldsError{Fields: fieldErrors}
	}

	updated, err := s.expenseRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	log.Info().Str("expense_id", id).Msg("Expense updated")
	s.publishEvent(websocket.ExpenseUpdated(updated))
	return updated, nil
}

// DeleteExpense removes every record with the given id. Unknown ids are not an error.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if err := s.expenseRepo.Delete(ctx, id); err != nil {
		return err
	}

	log.Info().Str("expense_id", id).Msg("Expense deleted")
	s.publishEvent(websocket.ExpenseDeleted(map[string]string{"id": id}))
	return nil
}

func requiredMessage(field string) string {
	return strings.ToUpper(field[:1]) + field[1:] + " is required"
}

func validateNote(note *string) []domain.FieldError {
	if note != nil && len(*note) > domain.MaxNoteLength {
		return []domain.FieldError{{Field: "note", Message: "Note must be 1000 characters or less"}}
	}
	return nil
}
