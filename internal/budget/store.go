// Package budget persists the client-local monthly budget threshold.
package budget

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dafibh/spendbook/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// document is the on-disk shape of the budget file
type document struct {
	MonthlyBudget decimal.Decimal `json:"monthlyBudget"`
}

// Store reads and writes the threshold at a fixed path
type Store struct {
	path string
}

// NewStore creates a Store backed by the file at path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load returns the saved threshold, or zero when nothing usable is saved
func (s *Store) Load() decimal.Decimal {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", s.path).Msg("Failed to read budget file")
		}
		return decimal.Zero
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Ignoring corrupt budget file")
		return decimal.Zero
	}
	if doc.MonthlyBudget.IsNegative() {
		return decimal.Zero
	}
	return doc.MonthlyBudget
}

// Save persists threshold. Negative values are rejected with domain.ErrInvalidBudget.
func (s *Store) Save(threshold decimal.Decimal) error {
	if threshold.IsNegative() {
		return domain.ErrInvalidBudget
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create budget dir: %w", err)
	}

	data, err := json.MarshalIndent(document{MonthlyBudget: threshold}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode budget: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write budget: %w", err)
	}
	return nil
}
