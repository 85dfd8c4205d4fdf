package interchange

import (
	"bytes"
	"fmt"

	"github.com/dafibh/spendbook/internal/domain"
	"github.com/dafibh/spendbook/internal/ledger"
	"github.com/xuri/excelize/v2"
)

// Sheet names in exported workbooks
const (
	ExpensesSheet   = "Expenses"
	CategoriesSheet = "By Category"
)

// ExportExcel writes records to a workbook with one row per expense and a
// per-category summary sheet
func ExportExcel(records []domain.Expense) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExpensesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4A5568"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	w := &sheetWriter{f: f, sheet: ExpensesSheet}
	w.row(1, "ID", "Date", "Category", "Amount", "Note", "Recurring")
	w.style("A1", "F1", headerStyle)
	for i, e := range records {
		amount, _ := e.Amount.Float64()
		w.row(i+2, e.ID, e.Date.String(), e.Category, amount, e.NoteText(), e.Recurring)
	}
	w.style("D2", fmt.Sprintf("D%d", len(records)+1), amountStyle)
	w.width("A", "A", 38)
	w.width("B", "D", 14)
	w.width("E", "E", 32)
	if w.err != nil {
		return nil, fmt.Errorf("write %s sheet: %w", ExpensesSheet, w.err)
	}

	if _, err := f.NewSheet(CategoriesSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	w = &sheetWriter{f: f, sheet: CategoriesSheet}
	w.row(1, "Category", "Amount")
	w.style("A1", "B1", headerStyle)

	summary := ledger.Aggregate(records)
	row := 2
	for _, c := range summary.ByCategory {
		amount, _ := c.Amount.Float64()
		w.row(row, c.Category, amount)
		row++
	}
	total, _ := summary.Total.Float64()
	w.row(row, "Total", total)
	w.style("B2", fmt.Sprintf("B%d", row), amountStyle)
	w.width("A", "B", 16)
	if w.err != nil {
		return nil, fmt.Errorf("write %s sheet: %w", CategoriesSheet, w.err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetWriter fills one sheet and keeps the first error; later calls are no-ops
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) row(row int, values ...interface{}) {
	for i, v := range values {
		if w.err != nil {
			return
		}
		var cell string
		if cell, w.err = excelize.CoordinatesToCellName(i+1, row); w.err != nil {
			return
		}
		w.err = w.f.SetCellValue(w.sheet, cell, v)
	}
}

func (w *sheetWriter) style(from, to string, style int) {
	if w.err == nil {
		w.err = w.f.SetCellStyle(w.sheet, from, to, style)
	}
}

func (w *sheetWriter) width(from, to string, width float64) {
	if w.err == nil {
		w.err = w.f.SetColWidth(w.sheet, from, to, width)
	}
}
