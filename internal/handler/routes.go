package handler

import (
	"github.com/dafibh/spendbook/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, expenseHandler *ExpenseHandler, wsHandler *WebSocketHandler, rateLimiter *middleware.RateLimiter) {
	expenses := e.Group("/expenses")
	if rateLimiter != nil {
		expenses.Use(middleware.RateLimitMiddleware(rateLimiter))
	}
	expenses.GET("", expenseHandler.GetExpenses)
	expenses.POST("", expenseHandler.CreateExpense)
	expenses.PUT("/:id", expenseHandler.UpdateExpense)
	expenses.DELETE("/:id", expenseHandler.DeleteExpense)

	// Change feed
	if wsHandler != nil {
		e.GET("/ws", wsHandler.HandleWS)
	}
}
