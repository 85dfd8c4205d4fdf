package interchange

import (
	"bytes"
	"sort"
	"testing"
	"time"

	"github.com/dafibh/spendbook/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRecords() []domain.Expense {
	note := "weekly shop"
	return []domain.Expense{
		{ID: "b", Amount: decimal.RequireFromString("40.25"), Category: "Transport", Date: domain.NewDate(2024, time.March, 2), Recurring: true},
		{ID: "a", Amount: decimal.RequireFromString("100"), Category: "Food", Date: domain.NewDate(2024, time.March, 15), Note: &note},
	}
}

func byID(records []domain.Expense) []domain.Expense {
	sorted := append([]domain.Expense{}, records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}

func TestExportImport_RoundTrip(t *testing.T) {
	records := sampleRecords()

	data, err := Export(records)
	require.NoError(t, err)

	imported, err := Import(data)
	require.NoError(t, err)

	want := byID(records)
	got := byID(imported)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.True(t, want[i].Amount.Equal(got[i].Amount))
		assert.Equal(t, want[i].Category, got[i].Category)
		assert.Equal(t, want[i].Date.String(), got[i].Date.String())
		assert.Equal(t, want[i].NoteText(), got[i].NoteText())
		assert.Equal(t, want[i].Recurring, got[i].Recurring)
	}
}

func TestExport_PrettyPrinted(t *testing.T) {
	data, err := Export(sampleRecords())

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("[\n  {\n    \"id\": \"b\"")))
}

func TestExport_Empty(t *testing.T) {
	_, err := Export(nil)

	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", `{oops`, ErrUnreadable},
		{"empty", ``, ErrUnreadable},
		{"object", `{"id":"a"}`, ErrInvalidFormat},
		{"array of strings", `["a"]`, ErrInvalidFormat},
		{"missing id", `[{"amount":1,"category":"Food","date":"2024-03-01"}]`, ErrInvalidFormat},
		{"missing amount", `[{"id":"a","category":"Food","date":"2024-03-01"}]`, ErrInvalidFormat},
		{"missing category", `[{"id":"a","amount":1,"date":"2024-03-01"}]`, ErrInvalidFormat},
		{"missing date", `[{"id":"a","amount":1,"category":"Food"}]`, ErrInvalidFormat},
		{"bad date", `[{"id":"a","amount":1,"category":"Food","date":"yesterday"}]`, ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import([]byte(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestImport_EmptyArray(t *testing.T) {
	records, err := Import([]byte(`[]`))

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIsExcel(t *testing.T) {
	assert.True(t, IsExcel("report.XLSX"))
	assert.True(t, IsExcel("s3://bucket/2024.xlsx"))
	assert.False(t, IsExcel(DefaultFileName))
}

func TestExportExcel(t *testing.T) {
	data, err := ExportExcel(sampleRecords())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ExpensesSheet, CategoriesSheet}, f.GetSheetList())

	rows, err := f.GetRows(ExpensesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "b", rows[1][0])
	assert.Equal(t, "Transport", rows[1][2])

	category, err := f.GetCellValue(CategoriesSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Transport", category)
	label, err := f.GetCellValue(CategoriesSheet, "A4")
	require.NoError(t, err)
	assert.Equal(t, "Total", label)
}

func TestExportExcel_Empty(t *testing.T) {
	_, err := ExportExcel(nil)

	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestSheetWriter_KeepsFirstError(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	w := &sheetWriter{f: f, sheet: "Missing"}
	w.row(1, "a", "b")
	require.Error(t, w.err)
	first := w.err

	w.width("A", "A", 300)
	w.style("A1", "A1", 0)
	assert.Equal(t, first, w.err)
}

func TestSheetWriter_ColumnWidthError(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	w := &sheetWriter{f: f, sheet: "Sheet1"}
	w.row(1, "a")
	require.NoError(t, w.err)
	w.width("A", "A", 300)
	assert.ErrorIs(t, w.err, excelize.ErrColumnWidth)
}
