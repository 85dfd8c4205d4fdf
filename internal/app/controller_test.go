package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dafibh/spendbook/internal/budget"
	"github.com/dafibh/spendbook/internal/domain"
	"github.com/dafibh/spendbook/internal/interchange"
	"github.com/dafibh/spendbook/internal/ledger"
	"github.com/dafibh/spendbook/internal/repository/storage"
	"github.com/dafibh/spendbook/internal/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnreachable = errors.New("dial tcp: connection refused")

// fakeStore is an in-memory Store with per-call error injection
type fakeStore struct {
	records   []domain.Expense
	listErr   error
	createErr error
	updateErr error
	deleteErr error
	updates   []domain.ExpensePatch
	calls     int
	events    []websocket.Event
}

func (f *fakeStore) List(ctx context.Context) ([]domain.Expense, error) {
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Expense{}, f.records...), nil
}

func (f *fakeStore) Create(ctx context.Context, expense domain.Expense) (domain.Expense, error) {
	f.calls++
	if f.createErr != nil {
		return domain.Expense{}, f.createErr
	}
	f.records = append(f.records, expense)
	return expense, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, patch domain.ExpensePatch) (domain.Expense, error) {
	f.calls++
	if f.updateErr != nil {
		return domain.Expense{}, f.updateErr
	}
	f.updates = append(f.updates, patch)
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i] = patch.Apply(f.records[i])
			return f.records[i], nil
		}
	}
	return domain.Expense{}, fmt.Errorf("%w: Expense not found", domain.ErrNotFound)
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.records[:0]
	for _, r := range f.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

func (f *fakeStore) Watch(ctx context.Context, fn func(websocket.Event)) error {
	for _, e := range f.events {
		fn(e)
	}
	return nil
}

type fakeBackups struct {
	objects map[string][]byte
}

func (f *fakeBackups) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	f.objects[key] = data
	return nil
}

func (f *fakeBackups) Download(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

var testNow = time.Date(2024, time.March, 20, 9, 0, 0, 0, time.UTC)

func newTestController(t *testing.T, store *fakeStore, opts ...Option) *Controller {
	t.Helper()
	seq := 0
	defaults := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("gen-%d", seq)
		}),
	}
	budgetStore := budget.NewStore(filepath.Join(t.TempDir(), "budget.json"))
	return NewController(store, budgetStore, domain.DefaultCategories, append(defaults, opts...)...)
}

func rec(id, amount, category string, day int) domain.Expense {
	return domain.Expense{
		ID:       id,
		Amount:   decimal.RequireFromString(amount),
		Category: category,
		Date:     domain.NewDate(2024, time.March, day),
	}
}

func TestController_Refresh(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{rec("a", "10", "Food", 1)}}
	c := newTestController(t, store)

	c.Refresh(context.Background())

	assert.Len(t, c.Records(), 1)
}

func TestController_RefreshFailureKeepsCache(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{rec("a", "10", "Food", 1)}}
	c := newTestController(t, store)
	c.Refresh(context.Background())

	store.listErr = errUnreachable
	c.Refresh(context.Background())

	assert.Len(t, c.Records(), 1)
}

func TestController_Add(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(t, store)

	saved, err := c.Add(context.Background(), ExpenseInput{
		Amount:   decimal.RequireFromString("42"),
		Category: "Food",
		Note:     "lunch",
	})

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "gen-1", saved.ID)
	assert.Equal(t, "2024-03-20", saved.Date.String())
	assert.Equal(t, "lunch", saved.NoteText())
	assert.Equal(t, []domain.Expense{*saved}, c.Records())
}

func TestController_AddValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   ExpenseInput
		wantErr error
	}{
		{"zero amount", ExpenseInput{Amount: decimal.Zero, Category: "Food"}, domain.ErrInvalidAmount},
		{"negative amount", ExpenseInput{Amount: decimal.NewFromInt(-1), Category: "Food"}, domain.ErrInvalidAmount},
		{"future date", ExpenseInput{Amount: decimal.NewFromInt(1), Category: "Food", Date: domain.NewDate(2024, time.March, 21)}, domain.ErrDateInFuture},
		{"unknown category", ExpenseInput{Amount: decimal.NewFromInt(1), Category: "Yachts"}, domain.ErrUnknownCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			c := newTestController(t, store)

			saved, err := c.Add(context.Background(), tt.input)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, saved)
			assert.Zero(t, store.calls)
		})
	}
}

func TestController_AddTransportFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{createErr: errUnreachable}
	c := newTestController(t, store)

	saved, err := c.Add(context.Background(), ExpenseInput{Amount: decimal.NewFromInt(5), Category: "Food"})

	assert.NoError(t, err)
	assert.Nil(t, saved)
	assert.Empty(t, c.Records())
}

func TestController_AddConflictIsSurfaced(t *testing.T) {
	store := &fakeStore{createErr: fmt.Errorf("%w: duplicate", domain.ErrAlreadyExists)}
	c := newTestController(t, store)

	_, err := c.Add(context.Background(), ExpenseInput{Amount: decimal.NewFromInt(5), Category: "Food"})

	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestController_Edit(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{rec("a", "10", "Food", 1)}}
	c := newTestController(t, store)
	c.Refresh(context.Background())

	category := "Bills"
	updated, err := c.Edit(context.Background(), "a", domain.ExpensePatch{Category: &category})

	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Bills", updated.Category)
	assert.Equal(t, "10.00", updated.Amount.StringFixed(2))

	// The full record is sent, not just the changed field
	require.Len(t, store.updates, 1)
	assert.NotNil(t, store.updates[0].Amount)
	assert.NotNil(t, store.updates[0].Date)

	cached, ok := c.state.Find("a")
	require.True(t, ok)
	assert.Equal(t, "Bills", cached.Category)
}

func TestController_EditUnknown(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(t, store)

	_, err := c.Edit(context.Background(), "ghost", domain.ExpensePatch{})

	assert.ErrorIs(t, err, domain.ErrExpenseNotFound)
	assert.Zero(t, store.calls)
}

func TestController_EditRejectsFutureDate(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{rec("a", "10", "Food", 1)}}
	c := newTestController(t, store)
	c.Refresh(context.Background())

	future := domain.NewDate(2025, time.January, 1)
	_, err := c.Edit(context.Background(), "a", domain.ExpensePatch{Date: &future})

	assert.ErrorIs(t, err, domain.ErrDateInFuture)
	assert.Empty(t, store.updates)
}

func TestController_EditNotFoundOnStore(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{rec("a", "10", "Food", 1)}}
	c := newTestController(t, store)
	c.Refresh(context.Background())
	store.records = nil

	_, err := c.Edit(context.Background(), "a", domain.ExpensePatch{})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestController_Delete(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{rec("a", "10", "Food", 1), rec("b", "5", "Bills", 2)}}
	c := newTestController(t, store)
	c.Refresh(context.Background())

	ok, err := c.Delete(context.Background(), "a")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, c.Records(), 1)
}

func TestController_DeleteTransportFailureKeepsCache(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{rec("a", "10", "Food", 1)}}
	c := newTestController(t, store)
	c.Refresh(context.Background())
	store.deleteErr = errUnreachable

	ok, err := c.Delete(context.Background(), "a")

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, c.Records(), 1)
}

func TestController_ViewAndSummary(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{
		rec("a", "10", "Food", 1),
		rec("b", "30", "Bills", 5),
		rec("c", "15", "Food", 9),
	}}
	c := newTestController(t, store)
	c.Refresh(context.Background())

	view := c.View(ledger.Filters{Category: "Food"})
	summary := c.Summary()

	require.Len(t, view, 2)
	assert.Equal(t, "c", view[0].ID)
	assert.Equal(t, "a", view[1].ID)
	// Summary ignores the view filter
	assert.Equal(t, "55.00", summary.Total.StringFixed(2))
	require.NotNil(t, summary.TopCategory)
	assert.Equal(t, "Bills", summary.TopCategory.Category)
}

func TestController_Report(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{rec("a", "100", "Food", 15)}}
	c := newTestController(t, store)
	c.Refresh(context.Background())

	report, err := c.Report(2024, time.March)
	require.NoError(t, err)
	assert.Equal(t, "100.00", report.Total.StringFixed(2))

	_, err = c.Report(2024, time.April)
	assert.ErrorIs(t, err, ledger.ErrNoData)
}

func TestController_Budget(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{rec("a", "600", "Food", 15)}}
	c := newTestController(t, store)
	c.Refresh(context.Background())

	assert.False(t, c.BudgetStatus().Over)

	require.NoError(t, c.SetBudget(decimal.NewFromInt(500)))
	assert.Equal(t, "500.00", c.Budget().StringFixed(2))
	assert.True(t, c.BudgetStatus().Over)

	assert.ErrorIs(t, c.SetBudget(decimal.NewFromInt(-5)), domain.ErrInvalidBudget)
	assert.Equal(t, "500.00", c.Budget().StringFixed(2))
}

func TestController_ExportImportFile(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{rec("a", "10", "Food", 1), rec("b", "5", "Bills", 2)}}
	c := newTestController(t, store)
	c.Refresh(context.Background())
	path := filepath.Join(t.TempDir(), "backup.json")

	written, err := c.Export(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	other := newTestController(t, &fakeStore{})
	callsBefore := store.calls
	count, err := other.Import(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, other.Records(), 2)
	assert.Equal(t, callsBefore, store.calls)
}

func TestController_ImportDoesNotTouchStore(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(t, store)
	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"x","amount":3,"category":"Food","date":"2024-03-01"}]`), 0o644))

	_, err := c.Import(context.Background(), path)

	require.NoError(t, err)
	assert.Len(t, c.Records(), 1)
	assert.Zero(t, store.calls)
	assert.Empty(t, store.records)
}

func TestController_ImportErrors(t *testing.T) {
	c := newTestController(t, &fakeStore{})
	dir := t.TempDir()
	badShape := filepath.Join(dir, "shape.json")
	require.NoError(t, os.WriteFile(badShape, []byte(`{"id":"x"}`), 0o644))

	_, err := c.Import(context.Background(), filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, interchange.ErrUnreadable)

	_, err = c.Import(context.Background(), badShape)
	assert.ErrorIs(t, err, interchange.ErrInvalidFormat)
}

func TestController_ExportEmpty(t *testing.T) {
	c := newTestController(t, &fakeStore{})

	_, err := c.Export(context.Background(), filepath.Join(t.TempDir(), "out.json"))

	assert.ErrorIs(t, err, interchange.ErrNothingToExport)
}

func TestController_ExportImportS3(t *testing.T) {
	backups := &fakeBackups{objects: map[string][]byte{}}
	var openedBucket string
	opener := func(ctx context.Context, bucket string) (storage.BackupRepository, error) {
		openedBucket = bucket
		return backups, nil
	}
	store := &fakeStore{records: []domain.Expense{rec("a", "10", "Food", 1)}}
	c := newTestController(t, store, WithBackups(opener))
	c.Refresh(context.Background())

	_, err := c.Export(context.Background(), "s3://my-backups/2024/expenses.json")
	require.NoError(t, err)
	assert.Equal(t, "my-backups", openedBucket)
	assert.Contains(t, backups.objects, "2024/expenses.json")

	other := newTestController(t, &fakeStore{}, WithBackups(opener))
	count, err := other.Import(context.Background(), "s3://my-backups/2024/expenses.json")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestController_S3WithoutBackups(t *testing.T) {
	store := &fakeStore{records: []domain.Expense{rec("a", "10", "Food", 1)}}
	c := newTestController(t, store)
	c.Refresh(context.Background())

	_, err := c.Export(context.Background(), "s3://bucket/key.json")

	assert.ErrorContains(t, err, "not configured")
}

func TestController_WatchAppliesEvents(t *testing.T) {
	created := rec("n", "7", "Health", 3)
	updated := rec("a", "99", "Food", 1)
	store := &fakeStore{
		records: []domain.Expense{rec("a", "10", "Food", 1), rec("b", "5", "Bills", 2)},
		events: []websocket.Event{
			websocket.ExpenseCreated(created),
			websocket.ExpenseUpdated(updated),
			websocket.ExpenseDeleted(map[string]string{"id": "b"}),
		},
	}
	c := newTestController(t, store)
	c.Refresh(context.Background())

	var seen []string
	err := c.Watch(context.Background(), func(e websocket.Event) { seen = append(seen, e.Type) })

	require.NoError(t, err)
	assert.Equal(t, []string{websocket.TypeExpenseCreated, websocket.TypeExpenseUpdated, websocket.TypeExpenseDeleted}, seen)

	records := c.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "99.00", records[0].Amount.StringFixed(2))
	assert.Equal(t, "n", records[1].ID)
}
