package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/spendbook/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const selectColumns = `id, amount, category, date, note, recurring`

// ExpenseRepository implements domain.ExpenseRepository using PostgreSQL.
// Insertion order is kept by the seq column.
type ExpenseRepository struct {
	pool *pgxpool.Pool
}

// NewExpenseRepository creates a new ExpenseRepository
func NewExpenseRepository(pool *pgxpool.Pool) *ExpenseRepository {
	return &ExpenseRepository{pool: pool}
}

// List returns every expense in insertion order
func (r *ExpenseRepository) List(ctx context.Context) ([]*domain.Expense, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM expenses ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]*domain.Expense, 0)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

// Create inserts a new expense
func (r *ExpenseRepository) Create(ctx context.Context, expense *domain.Expense) (*domain.Expense, error) {
	amount, err := decimalToPgNumeric(expense.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO expenses (id, amount, category, date, note, recurring)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+selectColumns,
		expense.ID, amount, expense.Category, toPgDate(expense.Date), toPgText(expense.Note), expense.Recurring,
	)
	created, err := scanExpense(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return created, nil
}

// Update merges patch over the stored expense inside a single transaction
func (r *ExpenseRepository) Update(ctx context.Context, id string, patch domain.ExpensePatch) (*domain.Expense, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanExpense(tx.QueryRow(ctx, `SELECT `+selectColumns+` FROM expenses WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrExpenseNotFound
		}
		return nil, err
	}

	merged := patch.Apply(*existing)
	amount, err := decimalToPgNumeric(merged.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	updated, err := scanExpense(tx.QueryRow(ctx, `
		UPDATE expenses
		SET amount = $2, category = $3, date = $4, note = $5, recurring = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+selectColumns,
		id, amount, merged.Category, toPgDate(merged.Date), toPgText(merged.Note), merged.Recurring,
	))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

// Delete removes the expense with the given id, if any
func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

func scanExpense(row pgx.Row) (*domain.Expense, error) {
	var (
		expense domain.Expense
		amount  pgtype.Numeric
		date    pgtype.Date
		note    pgtype.Text
	)
	if err := row.Scan(&expense.ID, &amount, &expense.Category, &date, &note, &expense.Recurring); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}
	expense.Amount = pgNumericToDecimal(amount)
	if date.Valid {
		expense.Date = domain.DateOf(date.Time)
	}
	if note.Valid {
		text := note.String
		expense.Note = &text
	}
	return &expense, nil
}

func toPgDate(d domain.Date) pgtype.Date {
	return pgtype.Date{Time: d.Time, Valid: !d.IsZero()}
}

func toPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func decimalToPgNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var num pgtype.Numeric
	if err := num.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return num, nil
}

func pgNumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

var _ domain.ExpenseRepository = (*ExpenseRepository)(nil)
