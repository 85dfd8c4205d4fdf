package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/spendbook/internal/domain"
	"github.com/dafibh/spendbook/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ExpenseHandler handles expense-related HTTP requests
type ExpenseHandler struct {
	expenseService *service.ExpenseService
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(expenseService *service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{
		expenseService: expenseService,
	}
}

// DeleteResponse is the body returned by DELETE /expenses/:id
type DeleteResponse struct {
	Success bool `json:"success"`
}

// GetExpenses handles GET /expenses
func (h *ExpenseHandler) GetExpenses(c echo.Context) error {
	expenses, err := h.expenseService.ListExpenses(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expenses")
		return NewInternalError(c, "Failed to list expenses")
	}

	response := make([]domain.Expense, len(expenses))
	for i, e := range expenses {
		response[i] = *e
	}
	return c.JSON(http.StatusOK, response)
}

// CreateExpense handles POST /expenses
func (h *ExpenseHandler) CreateExpense(c echo.Context) error {
	var req domain.ExpensePatch
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid expense data", nil)
	}

	expense, err := h.expenseService.CreateExpense(c.Request().Context(), req)
	if err != nil {
		return h.mapError(c, err, "Failed to create expense")
	}

	return c.JSON(http.StatusOK, expense)
}

// UpdateExpense handles PUT /expenses/:id
func (h *ExpenseHandler) UpdateExpense(c echo.Context) error {
	id := c.Param("id")

	var req domain.ExpensePatch
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid expense data", nil)
	}

	expense, err := h.expenseService.UpdateExpense(c.Request().Context(), id, req)
	if err != nil {
		return h.mapError(c, err, "Failed to update expense")
	}

	return c.JSON(http.StatusOK, expense)
}

// DeleteExpense handles DELETE /expenses/:id
func (h *ExpenseHandler) DeleteExpense(c echo.Context) error {
	id := c.Param("id")

	if err := h.expenseService.DeleteExpense(c.Request().Context(), id); err != nil {
		log.Error().Err(err).Str("expense_id", id).Msg("Failed to delete expense")
		return NewInternalError(c, "Failed to delete expense")
	}

	return c.JSON(http.StatusOK, DeleteResponse{Success: true})
}

func (h *ExpenseHandler) mapError(c echo.Context, err error, internalDetail string) error {
	var fieldsErr *domain.InvalidFieldsError
	switch {
	case errors.As(err, &fieldsErr):
		return NewValidationError(c, "Invalid expense data", toValidationErrors(fieldsErr.Fields))
	case errors.Is(err, domain.ErrInvalidInput):
		return NewValidationError(c, "Invalid expense data", nil)
	case errors.Is(err, domain.ErrExpenseNotFound), errors.Is(err, domain.ErrNotFound):
		return NewNotFoundError(c, "Expense not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		return NewConflictError(c, "Expense with this id already exists")
	}
	log.Error().Err(err).Str("path", c.Request().URL.Path).Msg(internalDetail)
	return NewInternalError(c, internalDetail)
}
