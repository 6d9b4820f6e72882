package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the date-only format used for expense dates everywhere.
const DateLayout = "2006-01-02"

// User represents a bot user keyed by their Telegram identity
type User struct {
	ID          int64     `json:"id"`
	ExternalID  int64     `json:"external_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expense is a single immutable spending record
type Expense struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
}

// CategoryTotal is the summed amount of one category
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// DateRange is an inclusive range of calendar days. A nil *DateRange means no bound.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether the calendar day of t falls inside the range.
func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	day := Day(t)
	return !day.Before(Day(r.From)) && !day.After(Day(r.To))
}

// Day truncates t to midnight of its calendar day, keeping the location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
