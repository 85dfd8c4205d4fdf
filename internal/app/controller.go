// Package app owns the client's state and implements the user actions.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dafibh/spendbook/internal/domain"
	"github.com/dafibh/spendbook/internal/interchange"
	"github.com/dafibh/spendbook/internal/ledger"
	"github.com/dafibh/spendbook/internal/repository/storage"
	"github.com/dafibh/spendbook/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Store is the remote record set the controller mirrors
type Store interface {
	List(ctx context.Context) ([]domain.Expense, error)
	Create(ctx context.Context, expense domain.Expense) (domain.Expense, error)
	Update(ctx context.Context, id string, patch domain.ExpensePatch) (domain.Expense, error)
	Delete(ctx context.Context, id string) error
	Watch(ctx context.Context, fn func(websocket.Event)) error
}

// BudgetStore persists the budget threshold locally
type BudgetStore interface {
	Load() decimal.Decimal
	Save(threshold decimal.Decimal) error
}

// BackupOpener returns the backup repository for a bucket
type BackupOpener func(ctx context.Context, bucket string) (storage.BackupRepository, error)

// ExpenseInput is what the user supplies when adding an expense
type ExpenseInput struct {
	Amount    decimal.Decimal
	Category  string
	Date      domain.Date // zero means today
	Note      string
	Recurring bool
}

// Controller coordinates the cache, the Store and local budget storage
type Controller struct {
	state      *ledger.State
	store      Store
	budget     BudgetStore
	categories []string
	backups    BackupOpener
	now        func() time.Time
	newID      func() string
}

// Option configures a Controller
type Option func(*Controller)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides id generation for new expenses
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

// WithBackups enables s3:// import and export locations
func WithBackups(opener BackupOpener) Option {
	return func(c *Controller) { c.backups = opener }
}

// NewController creates a Controller with an empty cache
func NewController(store Store, budget BudgetStore, categories []string, opts ...Option) *Controller {
	c := &Controller{
		state:      ledger.NewState(),
		store:      store,
		budget:     budget,
		categories: categories,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categories returns the configured closed category set
func (c *Controller) Categories() []string {
	return append([]string{}, c.categories...)
}

// Records returns the cached records in Store order
func (c *Controller) Records() []domain.Expense {
	return c.state.Records()
}

// Refresh replaces the cache with the Store's current set. Failures are
// logged and leave the cache unchanged.
func (c *Controller) Refresh(ctx context.Context) {
	records, err := c.store.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load expenses")
		return
	}
	c.state.Replace(records)
}

// Add validates input, creates the record in the Store and caches the echo.
// A nil expense with a nil error means the Store could not be reached.
func (c *Controller) Add(ctx context.Context, input ExpenseInput) (*domain.Expense, error) {
	expense := domain.Expense{
		ID:        c.newID(),
		Amount:    input.Amount,
		Category:  input.Category,
		Date:      input.Date,
		Recurring: input.Recurring,
	}
	if expense.Date.IsZero() {
		expense.Date = domain.DateOf(c.now())
	}
	if input.Note != "" {
		note := input.Note
		expense.Note = &note
	}
	if err := expense.Validate(c.now(), c.categories); err != nil {
		return nil, err
	}

	saved, err := c.store.Create(ctx, expense)
	if err != nil {
		return nil, c.swallowTransport(err, "Failed to add expense")
	}
	c.state.Add(saved)
	return &saved, nil
}

// Edit merges patch over the cached record, validates the result and sends
// the full record to the Store
func (c *Controller) Edit(ctx context.Context, id string, patch domain.ExpensePatch) (*domain.Expense, error) {
	cached, ok := c.state.Find(id)
	if !ok {
		return nil, domain.ErrExpenseNotFound
	}

	merged := patch.Apply(cached)
	if err := merged.Validate(c.now(), c.categories); err != nil {
		return nil, err
	}

	updated, err := c.store.Update(ctx, id, domain.PatchOf(merged))
	if err != nil {
		return nil, c.swallowTransport(err, "Failed to update expense")
	}
	c.state.Put(updated)
	return &updated, nil
}

// Delete removes id from the Store and then from the cache. It reports
// whether the Store acknowledged the delete.
func (c *Controller) Delete(ctx context.Context, id string) (bool, error) {
	if err := c.store.Delete(ctx, id); err != nil {
		return false, c.swallowTransport(err, "Failed to delete expense")
	}
	c.state.Remove(id)
	return true, nil
}

// View returns the filtered cache, most recent first
func (c *Controller) View(filters ledger.Filters) []domain.Expense {
	return ledger.SortByDateDescending(ledger.Filter(c.state.Records(), filters))
}

// Summary aggregates the whole cache, ignoring any view filters
func (c *Controller) Summary() ledger.Summary {
	return ledger.Aggregate(c.state.Records())
}

// Report builds the monthly report for the given month
func (c *Controller) Report(year int, month time.Month) (ledger.Report, error) {
	return ledger.MonthlyReport(c.state.Records(), year, month)
}

// Budget returns the saved threshold
func (c *Controller) Budget() decimal.Decimal {
	return c.budget.Load()
}

// SetBudget saves a new threshold
func (c *Controller) SetBudget(threshold decimal.Decimal) error {
	return c.budget.Save(threshold)
}

// BudgetStatus measures this month's spend against the saved threshold
func (c *Controller) BudgetStatus() ledger.BudgetStatus {
	return ledger.BudgetCheck(c.state.Records(), c.budget.Load(), c.now())
}

// Export writes the cache to target, a local path or an s3:// location.
// Targets ending in .xlsx are written as workbooks. It returns the location written.
func (c *Controller) Export(ctx context.Context, target string) (string, error) {
	if target == "" {
		target = interchange.DefaultFileName
	}

	records := c.state.Records()
	var (
		data        []byte
		err         error
		contentType = "application/json"
	)
	if interchange.IsExcel(target) {
		data, err = interchange.ExportExcel(records)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	} else {
		data, err = interchange.Export(records)
	}
	if err != nil {
		return "", err
	}

	if storage.IsURI(target) {
		repo, key, err := c.openBackup(ctx, target)
		if err != nil {
			return "", err
		}
		if err := repo.Upload(ctx, key, data, contentType); err != nil {
			return "", err
		}
	} else if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}

	log.Info().Str("target", target).Int("count", len(records)).Msg("Expenses exported")
	return target, nil
}

// Import replaces the cache with the records in source. The Store is not
// updated; imported records are display-only until the next Refresh.
func (c *Controller) Import(ctx context.Context, source string) (int, error) {
	var (
		data []byte
		err  error
	)
	if storage.IsURI(source) {
		repo, key, openErr := c.openBackup(ctx, source)
		if openErr != nil {
			return 0, openErr
		}
		data, err = repo.Download(ctx, key)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		log.Error().Err(err).Str("source", source).Msg("Failed to read import")
		return 0, interchange.ErrUnreadable
	}

	records, err := interchange.Import(data)
	if err != nil {
		return 0, err
	}
	c.state.Replace(records)
	log.Info().Str("source", source).Int("count", len(records)).Msg("Expenses imported")
	return len(records), nil
}

// Watch applies the Store's change events to the cache until ctx ends.
// onChange, when set, runs after each applied event.
func (c *Controller) Watch(ctx context.Context, onChange func(websocket.Event)) error {
	return c.store.Watch(ctx, func(event websocket.Event) {
		c.applyEvent(event)
		if onChange != nil {
			onChange(event)
		}
	})
}

func (c *Controller) applyEvent(event websocket.Event) {
	switch event.Type {
	case websocket.TypeExpenseCreated, websocket.TypeExpenseUpdated:
		var expense domain.Expense
		if err := json.Unmarshal(event.Payload, &expense); err != nil {
			log.Warn().Err(err).Str("type", event.Type).Msg("Ignoring change event with bad payload")
			return
		}
		if !c.state.Put(expense) {
			c.state.Add(expense)
		}
	case websocket.TypeExpenseDeleted:
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.ID == "" {
			log.Warn().Str("type", event.Type).Msg("Ignoring delete event without id")
			return
		}
		c.state.Remove(payload.ID)
	}
}

func (c *Controller) openBackup(ctx context.Context, location string) (storage.BackupRepository, string, error) {
	if c.backups == nil {
		return nil, "", errors.New("object storage backups are not configured")
	}
	bucket, key, err := storage.ParseURI(location)
	if err != nil {
		return nil, "", err
	}
	repo, err := c.backups(ctx, bucket)
	if err != nil {
		return nil, "", err
	}
	return repo, key, nil
}

// swallowTransport returns domain errors and logs everything else
func (c *Controller) swallowTransport(err error, msg string) error {
	if isUserFacing(err) {
		return err
	}
	log.Error().Err(err).Msg(msg)
	return nil
}

func isUserFacing(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrExpenseNotFound) ||
		errors.Is(err, domain.ErrAlreadyExists)
}
