package domain

import "errors"

// Domain errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrAlreadyExists   = errors.New("resource already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrExpenseNotFound = errors.New("expense not found")
	ErrIDRequired      = errors.New("id is required")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrDateRequired    = errors.New("date is required")
	ErrDateInFuture    = errors.New("date cannot be in the future")
	ErrCategoryEmpty   = errors.New("category is required")
	ErrUnknownCategory = errors.New("category is not one of the configured categories")
	ErrNoteTooLong     = errors.New("note exceeds maximum length")
	ErrInvalidBudget   = errors.New("budget must be zero or positive")
)

// Validation constants
const (
	MaxNoteLength = 1000
)

// FieldError describes one invalid or missing input field
type FieldError struct {
	Field   string
	Message string
}

// InvalidFieldsError reports every field that failed validation.
// It matches ErrInvalidInput under errors.Is.
type InvalidFieldsError struct {
	Fields []FieldError
}

func (e *InvalidFieldsError) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalidInput.Error()
	}
	msg := ErrInvalidInput.Error() + ":"
	for i, f := range e.Fields {
		if i > 0 {
			msg += ";"
		}
		msg += " " + f.Field + ": " + f.Message
	}
	return msg
}

func (e *InvalidFieldsError) Unwrap() error {
	return ErrInvalidInput
}
