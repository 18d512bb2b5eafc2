package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the reconciliation state of a ledger entry
type Status string

const (
	// StatusMissing marks an entry with no confirmed counterpart in the opposite ledger
	StatusMissing Status = "MISSING"
	// StatusFound marks an entry paired with exactly one entry of the opposite ledger
	StatusFound Status = "FOUND"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known reconciliation states
func (s Status) IsValid() bool {
	return s == StatusMissing || s == StatusFound
}

// DateLayout is the calendar-day format used in ledger files and reports
const DateLayout = "2006-01-02"

// DayTolerance is the maximum calendar-day drift allowed between two entries
// for them to be considered the same real-world event (inclusive, either direction)
const DayTolerance = 1

// Transaction represents one ledger entry. Date carries a calendar day only
// (normalized to midnight UTC); Value is an exact decimal so that equality
// comparisons never suffer floating point drift.
type Transaction struct {
	Date        time.Time       `json:"date" csv:"date"`
	Department  string          `json:"department" csv:"department"`
	Counterpart string          `json:"counterpart" csv:"counterpart"`
	Value       decimal.Decimal `json:"value" csv:"value"`
	Status      Status          `json:"status" csv:"status"`
}

// GroupKey identifies the matching cluster a transaction belongs to.
// Two entries are match candidates iff their keys are exactly equal;
// the Value component is the decimal's canonical string, so 16.0 and 16.00
// produce the same key while 49.99 and 50.00 never do. The struct is
// comparable and safe to use as a map key.
type GroupKey struct {
	Department  string
	Counterpart string
	Value       string
}

// String returns a compact representation of the group key
func (k GroupKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Department, k.Counterpart, k.Value)
}

// NewTransaction creates a new Transaction with status MISSING.
// The date is normalized to a calendar day.
func NewTransaction(date time.Time, department, counterpart string, value decimal.Decimal) *Transaction {
	return &Transaction{
		Date:        NormalizeDate(date),
		Department:  department,
		Counterpart: counterpart,
		Value:       value,
		Status:      StatusMissing,
	}
}

// GroupKey returns the (department, counterpart, value) tuple used to
// shortlist candidate matches. It is used for equality and grouping only,
// never for ordering.
func (t *Transaction) GroupKey() GroupKey {
	return GroupKey{
		Department:  t.Department,
		Counterpart: t.Counterpart,
		Value:       t.Value.String(),
	}
}

// IsCompatibleWith reports whether t and other can be paired: neither side
// may already be FOUND, the group keys must be exactly equal, and the dates
// may differ by at most DayTolerance calendar days in either direction.
// The check never mutates either entry.
func (t *Transaction) IsCompatibleWith(other *Transaction) bool {
	if other == nil {
		return false
	}

	if t.Status == StatusFound || other.Status == StatusFound {
		return false
	}

	if t.GroupKey() != other.GroupKey() {
		return false
	}

	return WithinDayTolerance(t.Date, other.Date)
}

// MarkFound transitions the entry to FOUND. The transition is one-way;
// there is no way back to MISSING.
func (t *Transaction) MarkFound() {
	t.Status = StatusFound
}

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}

	if strings.TrimSpace(t.Department) == "" {
		return fmt.Errorf("transaction department cannot be empty")
	}

	if strings.TrimSpace(t.Counterpart) == "" {
		return fmt.Errorf("transaction counterpart cannot be empty")
	}

	if !t.Status.IsValid() {
		return fmt.Errorf("invalid transaction status: %s", t.Status)
	}

	return nil
}

// String renders the entry as the fixed-width line used in ledger listings:
// "Transaction: <date> | <department> | <counterpart> | <value> | Status: <status>"
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction: %s | %12s | %12s | %4s | Status: %8s",
		t.Date.Format(DateLayout), t.Department, t.Counterpart, t.Value.StringFixed(2), t.Status)
}

// MarshalJSON implements custom JSON marshaling for Transaction
func (t *Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		Date  string `json:"date"`
		Value string `json:"value"`
		*Alias
	}{
		Date:  t.Date.Format(DateLayout),
		Value: t.Value.String(),
		Alias: (*Alias)(t),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Transaction
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type Alias Transaction
	aux := &struct {
		Date  string `json:"date"`
		Value string `json:"value"`
		*Alias
	}{
		Alias: (*Alias)(t),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	t.Date, err = ParseDate(aux.Date)
	if err != nil {
		return fmt.Errorf("invalid date format: %w", err)
	}

	t.Value, err = decimal.NewFromString(aux.Value)
	if err != nil {
		return fmt.Errorf("invalid value format: %w", err)
	}

	if t.Status == "" {
		t.Status = StatusMissing
	}

	return nil
}

// Equals compares two Transaction instances field by field
func (t *Transaction) Equals(other *Transaction) bool {
	if other == nil {
		return false
	}

	return t.Date.Equal(other.Date) &&
		t.Department == other.Department &&
		t.Counterpart == other.Counterpart &&
		t.Value.Equal(other.Value) &&
		t.Status == other.Status
}

// Utility functions for type conversion and validation

// NormalizeDate truncates a time to its calendar day at midnight UTC
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a calendar day from string, trying the formats commonly
// found in ledger exports. The result is normalized to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		DateLayout,   // "2006-01-02"
		"2006/01/02", // "2006/01/02"
		"01/02/2006", // "01/02/2006"
		"Jan 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return NormalizeDate(t), nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// ParseDateWithLayout parses a date using a single fixed layout and
// normalizes it to a calendar day
func ParseDateWithLayout(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date '%s' with layout '%s': %w", s, layout, err)
	}

	return NormalizeDate(t), nil
}

// ParseValue parses a decimal amount from string with validation,
// tolerating currency symbols and thousand separators
func ParseValue(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("value string cannot be empty")
	}

	// Remove common currency symbols and thousand separators
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// DateDiffDays returns the absolute difference between two calendar days,
// in whole days, ignoring any time-of-day component
func DateDiffDays(a, b time.Time) int {
	diff := NormalizeDate(a).Sub(NormalizeDate(b))
	if diff < 0 {
		diff = -diff
	}

	return int(diff / (24 * time.Hour))
}

// WithinDayTolerance reports whether two calendar days are at most
// DayTolerance days apart, in either direction
func WithinDayTolerance(a, b time.Time) bool {
	return DateDiffDays(a, b) <= DayTolerance
}

// CreateTransactionFromRecord creates a Transaction from a raw CSV record
// with fields ordered [date, department, value, counterpart]
func CreateTransactionFromRecord(fields []string) (*Transaction, error) {
	if len(fields) != 4 {
		return nil, fmt.Errorf("expected 4 fields [date, department, value, counterpart], got %d", len(fields))
	}

	date, err := ParseDate(fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid date in record: %w", err)
	}

	value, err := ParseValue(fields[2])
	if err != nil {
		return nil, fmt.Errorf("invalid value in record: %w", err)
	}

	transaction := NewTransaction(date, strings.TrimSpace(fields[1]), strings.TrimSpace(fields[3]), value)

	if err := transaction.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction data: %w", err)
	}

	return transaction, nil
}
