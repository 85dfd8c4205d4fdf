package util

import (
	"fmt"
	"strings"
	"time"
)

// MonthLayout is the YYYY-MM form used on the command line
const MonthLayout = "2006-01"

// ParseMonth parses a YYYY-MM value
func ParseMonth(value string) (int, time.Month, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("month must look like YYYY-MM, got %q", value)
	}
	return t.Year(), t.Month(), nil
}

// PreviousMonth returns the year and month for the previous month
func PreviousMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// MonthBounds returns the first and last day of the given month
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of next month is the last day of this one
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return first, last
}
