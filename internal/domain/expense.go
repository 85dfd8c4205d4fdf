package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategories is the closed category set used when none is configured
var DefaultCategories = []string{"Food", "Transport", "Bills", "Shopping", "Entertainment", "Health", "Other"}

// Expense is a single spending record
type Expense struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	Date      Date            `json:"date"`
	Note      *string         `json:"note,omitempty"`
	Recurring bool            `json:"recurring"`
}

// NoteText returns the note, or "" when unset
func (e *Expense) NoteText() string {
	if e.Note == nil {
		return ""
	}
	return *e.Note
}

// Validate checks the record the way the entry form does before it is sent
// to the store: positive amount, a date no later than today, a known category.
func (e *Expense) Validate(now time.Time, categories []string) error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrIDRequired
	}
	if e.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if e.Date.IsZero() {
		return ErrDateRequired
	}
	if e.Date.After(DateOf(now)) {
		return ErrDateInFuture
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrCategoryEmpty
	}
	if !IsKnownCategory(e.Category, categories) {
		return ErrUnknownCategory
	}
	if e.Note != nil && len(*e.Note) > MaxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

// IsKnownCategory reports whether category is a member of categories
func IsKnownCategory(category string, categories []string) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}

// ExpensePatch is a partial expense. Nil fields are absent.
// ClearNote records an explicit "note": null, which removes the note.
type ExpensePatch struct {
	ID        *string          `json:"id,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Category  *string          `json:"category,omitempty"`
	Date      *Date            `json:"date,omitempty"`
	Note      *string          `json:"note,omitempty"`
	Recurring *bool            `json:"recurring,omitempty"`
	ClearNote bool             `json:"-"`
}

type plainPatch ExpensePatch

func (p *ExpensePatch) UnmarshalJSON(data []byte) error {
	var decoded plainPatch
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*p = ExpensePatch(decoded)
	if raw, ok := fields["note"]; ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		p.ClearNote = true
	}
	return nil
}

func (p ExpensePatch) MarshalJSON() ([]byte, error) {
	if !p.ClearNote || p.Note != nil {
		return json.Marshal(plainPatch(p))
	}
	return json.Marshal(struct {
		plainPatch
		Note *string `json:"note"`
	}{plainPatch: plainPatch(p)})
}

// MissingFields returns the names of required fields that are absent or empty.
// A zero amount counts as absent.
func (p *ExpensePatch) MissingFields() []string {
	var missing []string
	if p.ID == nil || strings.TrimSpace(*p.ID) == "" {
		missing = append(missing, "id")
	}
	if p.Amount == nil || p.Amount.IsZero() {
		missing = append(missing, "amount")
	}
	if p.Category == nil || strings.TrimSpace(*p.Category) == "" {
		missing = append(missing, "category")
	}
	if p.Date == nil || p.Date.IsZero() {
		missing = append(missing, "date")
	}
	return missing
}

// ToExpense builds a full record from the patch. Callers check MissingFields first.
func (p *ExpensePatch) ToExpense() Expense {
	var e Expense
	if p.ID != nil {
		e.ID = *p.ID
	}
	return p.Apply(e)
}

// Apply shallow-merges the patch over e. Set fields win, nil fields keep the
// value from e. The id is never taken from the patch.
func (p *ExpensePatch) Apply(e Expense) Expense {
	merged := e
	if p.Amount != nil {
		merged.Amount = *p.Amount
	}
	if p.Category != nil {
		merged.Category = *p.Category
	}
	if p.Date != nil {
		merged.Date = *p.Date
	}
	if p.Note != nil {
		note := *p.Note
		merged.Note = &note
	} else if p.ClearNote {
		merged.Note = nil
	}
	if p.Recurring != nil {
		merged.Recurring = *p.Recurring
	}
	return merged
}

// PatchOf returns a patch that sets every field of e
func PatchOf(e Expense) ExpensePatch {
	id := e.ID
	amount := e.Amount
	category := e.Category
	date := e.Date
	recurring := e.Recurring
	patch := ExpensePatch{
		ID:        &id,
		Amount:    &amount,
		Category:  &category,
		Date:      &date,
		Recurring: &recurring,
	}
	if e.Note != nil {
		note := *e.Note
		patch.Note = &note
	} else {
		patch.ClearNote = true
	}
	return patch
}

// ExpenseRepository persists the authoritative record set
type ExpenseRepository interface {
	List(ctx context.Context) ([]*Expense, error)
	Create(ctx context.Context, expense *Expense) (*Expense, error)
	Update(ctx context.Context, id string, patch ExpensePatch) (*Expense, error)
	Delete(ctx context.Context, id string) error
}
