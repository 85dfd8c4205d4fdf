// Package interchange converts the client cache to and from backup documents.
package interchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dafibh/spendbook/internal/domain"
)

// DefaultFileName is the export target when none is given
const DefaultFileName = "expenses_backup.json"

var (
	// ErrNothingToExport is returned when the cache is empty
	ErrNothingToExport = errors.New("no expenses to export")
	// ErrUnreadable is returned when the document is not JSON at all
	ErrUnreadable = errors.New("failed to read JSON file")
	// ErrInvalidFormat is returned when the JSON is not an array of complete records
	ErrInvalidFormat = errors.New("invalid JSON format")
)

// Export encodes records as a pretty-printed JSON array
func Export(records []domain.Expense) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNothingToExport
	}
	return json.MarshalIndent(records, "", "  ")
}

// Import decodes a JSON array of records. Every element must carry an id,
// a non-zero amount, a category and a date.
func Import(data []byte) ([]domain.Expense, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ErrUnreadable
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrInvalidFormat
	}

	var patches []domain.ExpensePatch
	if err := json.Unmarshal(raw, &patches); err != nil {
		return nil, ErrInvalidFormat
	}

	records := make([]domain.Expense, 0, len(patches))
	for _, p := range patches {
		if len(p.MissingFields()) > 0 {
			return nil, ErrInvalidFormat
		}
		records = append(records, p.ToExpense())
	}
	return records, nil
}

// IsExcel reports whether the target names a spreadsheet
func IsExcel(target string) bool {
	return strings.HasSuffix(strings.ToLower(target), ".xlsx")
}
