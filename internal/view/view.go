// Package view renders expenses, summaries and reports for the terminal.
package view

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/dafibh/spendbook/internal/domain"
	"github.com/dafibh/spendbook/internal/interchange"
	"github.com/dafibh/spendbook/internal/ledger"
	"github.com/shopspring/decimal"
)

const (
	noteWidth     = 32
	chartBarWidth = 30
	// hueStep spaces category colours around the wheel
	hueStep = 50
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1e1e2e")).
			Background(lipgloss.Color("#f38ba8")).
			Padding(0, 1)
	okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
)

// Renderer formats values with a fixed currency symbol
type Renderer struct {
	currency string
}

// NewRenderer creates a Renderer using currency as the display symbol
func NewRenderer(currency string) *Renderer {
	return &Renderer{currency: currency}
}

// Money formats an amount with the currency symbol and two decimals
func (r *Renderer) Money(amount decimal.Decimal) string {
	return r.currency + amount.StringFixed(2)
}

// ExpenseTable renders records in the given order
func (r *Renderer) ExpenseTable(records []domain.Expense) string {
	if len(records) == 0 {
		return mutedStyle.Render("No expenses to show.")
	}

	rows := make([][]string, 0, len(records))
	for _, e := range records {
		note := "-"
		if e.NoteText() != "" {
			note = ansi.Truncate(e.NoteText(), noteWidth, "…")
		}
		recurring := "-"
		if e.Recurring {
			recurring = "✔"
		}
		rows = append(rows, []string{
			r.Money(e.Amount),
			e.Category,
			e.Date.Format("Jan 2, 2006"),
			note,
			recurring,
			e.ID,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("Amount", "Category", "Date", "Note", "Recurring", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 0 {
				return lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.Render()
}

// Summary renders the grand total and the top category
func (r *Renderer) Summary(s ledger.Summary) string {
	top := "-"
	if s.TopCategory != nil {
		top = fmt.Sprintf("%s (%s)", s.TopCategory.Category, r.Money(s.TopCategory.Amount))
	}
	return fmt.Sprintf("%s %s   %s %s",
		headerStyle.Render("Total:"), r.Money(s.Total),
		headerStyle.Render("Top Category:"), top)
}

// CategoryChart renders one horizontal bar per category, scaled to the largest
func (r *Renderer) CategoryChart(s ledger.Summary) string {
	if len(s.ByCategory) == 0 {
		return ""
	}

	labelWidth := 0
	largest := decimal.Zero
	for _, c := range s.ByCategory {
		if w := lipgloss.Width(c.Category); w > labelWidth {
			labelWidth = w
		}
		if c.Amount.GreaterThan(largest) {
			largest = c.Amount
		}
	}

	lines := make([]string, 0, len(s.ByCategory))
	for i, c := range s.ByCategory {
		width := 1
		if largest.IsPositive() {
			ratio, _ := c.Amount.Div(largest).Float64()
			width = int(math.Max(1, math.Round(ratio*chartBarWidth)))
		}
		bar := lipgloss.NewStyle().Foreground(lipgloss.Color(CategoryColor(i))).Render(strings.Repeat("█", width))
		label := lipgloss.NewStyle().Width(labelWidth).Render(c.Category)
		lines = append(lines, fmt.Sprintf("%s %s %s", label, bar, r.Money(c.Amount)))
	}
	return strings.Join(lines, "\n")
}

// MonthlyReport renders the plain-text report for one month
func (r *Renderer) MonthlyReport(report ledger.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Monthly Report for %d/%d\n\n", int(report.Month), report.Year)
	fmt.Fprintf(&b, "Total Spent: %s\n\n", r.Money(report.Total))
	b.WriteString("Breakdown by Category:\n")
	for _, c := range report.ByCategory {
		fmt.Fprintf(&b, "- %s: %s\n", c.Category, r.Money(c.Amount))
	}
	return b.String()
}

// Budget renders the budget line, with a warning banner when over budget
func (r *Renderer) Budget(status ledger.BudgetStatus) string {
	if !status.Active {
		return mutedStyle.Render("No monthly budget set.")
	}
	line := fmt.Sprintf("Spent %s of %s this month.", r.Money(status.MonthlyTotal), r.Money(status.Threshold))
	if status.Over {
		return warningStyle.Render("⚠ Monthly budget exceeded!") + " " + line
	}
	return okStyle.Render(line)
}

// Title renders a section heading
func Title(text string) string {
	return titleStyle.Render(text)
}

// UserMessage turns an error into the sentence shown to the user
func UserMessage(err error) string {
	var fieldsErr *domain.InvalidFieldsError
	switch {
	case errors.As(err, &fieldsErr):
		msgs := make([]string, len(fieldsErr.Fields))
		for i, f := range fieldsErr.Fields {
			msgs[i] = f.Message
		}
		return strings.Join(msgs, " ")
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Enter a valid amount."
	case errors.Is(err, domain.ErrDateRequired):
		return "Please select a date."
	case errors.Is(err, domain.ErrDateInFuture):
		return "Date cannot be in the future."
	case errors.Is(err, domain.ErrUnknownCategory), errors.Is(err, domain.ErrCategoryEmpty):
		return "Please select a category."
	case errors.Is(err, domain.ErrNoteTooLong):
		return "Note must be 1000 characters or less."
	case errors.Is(err, domain.ErrInvalidBudget):
		return "Enter a valid budget."
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrExpenseNotFound):
		return "Expense not found."
	case errors.Is(err, domain.ErrAlreadyExists):
		return "An expense with this id already exists."
	case errors.Is(err, ledger.ErrNoData):
		return "No expenses for the selected month."
	case errors.Is(err, interchange.ErrNothingToExport):
		return "No expenses to export!"
	case errors.Is(err, interchange.ErrUnreadable):
		return "Failed to read JSON file."
	case errors.Is(err, interchange.ErrInvalidFormat):
		return "Invalid JSON format."
	}
	return err.Error()
}

// CategoryColor returns the hex colour for the i-th category, matching
// hsl(i*50, 70%, 60%)
func CategoryColor(i int) string {
	return hslToHex(float64((i*hueStep)%360), 0.7, 0.6)
}

func hslToHex(h, s, l float64) string {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return fmt.Sprintf("#%02x%02x%02x",
		int(math.Round((r+m)*255)),
		int(math.Round((g+m)*255)),
		int(math.Round((b+m)*255)))
}
