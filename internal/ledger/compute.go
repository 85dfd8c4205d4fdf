package ledger

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dafibh/spendbook/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrNoData is returned by MonthlyReport when no record falls in the month
var ErrNoData = errors.New("no expenses for the selected month")

// Filters narrows a record set. Zero-valued fields are inactive.
type Filters struct {
	Note     string
	Category string
	Start    *domain.Date
	End      *domain.Date
}

// CategoryAmount is one category's share of a total
type CategoryAmount struct {
	Category string
	Amount   decimal.Decimal
}

// Summary is the aggregate of a record set
type Summary struct {
	Total       decimal.Decimal
	ByCategory  []CategoryAmount
	TopCategory *CategoryAmount
}

// Report is the breakdown of one calendar month
type Report struct {
	Year       int
	Month      time.Month
	Total      decimal.Decimal
	ByCategory []CategoryAmount
}

// BudgetStatus is the current month's spend measured against a threshold
type BudgetStatus struct {
	Threshold    decimal.Decimal
	MonthlyTotal decimal.Decimal
	Active       bool
	Over         bool
}

// Filter returns the records matching every active filter, in input order.
// Records without a note never match a note filter.
func Filter(records []domain.Expense, f Filters) []domain.Expense {
	note := strings.ToLower(f.Note)
	result := make([]domain.Expense, 0, len(records))
	for _, r := range records {
		if note != "" && (r.Note == nil || !strings.Contains(strings.ToLower(*r.Note), note)) {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		if f.Start != nil && r.Date.Before(*f.Start) {
			continue
		}
		if f.End != nil && r.Date.After(*f.End) {
			continue
		}
		result = append(result, r)
	}
	return result
}

// SortByDateDescending returns a copy ordered most recent first. Records on
// the same date keep their relative order.
func SortByDateDescending(records []domain.Expense) []domain.Expense {
	sorted := append([]domain.Expense{}, records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	return sorted
}

// Aggregate totals records overall and per category. Categories appear in
// the order first encountered; the top category is the largest total, ties
// going to the one encountered first.
func Aggregate(records []domain.Expense) Summary {
	total, byCategory := accumulate(records)
	summary := Summary{Total: total, ByCategory: byCategory}
	for i := range byCategory {
		if summary.TopCategory == nil || byCategory[i].Amount.GreaterThan(summary.TopCategory.Amount) {
			top := byCategory[i]
			summary.TopCategory = &top
		}
	}
	return summary
}

// MonthlyReport totals the records dated in the given month
func MonthlyReport(records []domain.Expense, year int, month time.Month) (Report, error) {
	var inMonth []domain.Expense
	for _, r := range records {
		if r.Date.InMonth(year, int(month)) {
			inMonth = append(inMonth, r)
		}
	}
	if len(inMonth) == 0 {
		return Report{}, ErrNoData
	}
	total, byCategory := accumulate(inMonth)
	return Report{Year: year, Month: month, Total: total, ByCategory: byCategory}, nil
}

// BudgetCheck sums the records in now's calendar month. The budget is over
// only when the threshold is positive and the sum strictly exceeds it.
func BudgetCheck(records []domain.Expense, threshold decimal.Decimal, now time.Time) BudgetStatus {
	status := BudgetStatus{Threshold: threshold, MonthlyTotal: decimal.Zero}
	for _, r := range records {
		if r.Date.InMonth(now.Year(), int(now.Month())) {
			status.MonthlyTotal = status.MonthlyTotal.Add(r.Amount)
		}
	}
	status.Active = threshold.IsPositive()
	status.Over = status.Active && status.MonthlyTotal.GreaterThan(threshold)
	return status
}

func accumulate(records []domain.Expense) (decimal.Decimal, []CategoryAmount) {
	total := decimal.Zero
	index := make(map[string]int)
	var byCategory []CategoryAmount
	for _, r := range records {
		total = total.Add(r.Amount)
		i, ok := index[r.Category]
		if !ok {
			i = len(byCategory)
			index[r.Category] = i
			byCategory = append(byCategory, CategoryAmount{Category: r.Category, Amount: decimal.Zero})
		}
		byCategory[i].Amount = byCategory[i].Amount.Add(r.Amount)
	}
	return total, byCategory
}
