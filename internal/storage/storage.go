package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/xaenox/expense-bot/internal/models"
)

// ErrUserNotFound is returned when an operation references a user that does not exist.
var ErrUserNotFound = errors.New("user not found")

// Error wraps every failure coming out of a Storage implementation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

type Storage interface {
	UserStorage
	ExpenseStorage
	Ping(ctx context.Context) error
	Close() error
}

type UserStorage interface {
	// EnsureUser returns the internal id of the user, creating the row on first use.
	EnsureUser(ctx context.Context, externalID int64, displayName string) (int64, error)
	FindUser(ctx context.Context, externalID int64) (int64, error)
}

type ExpenseStorage interface {
	RecordExpense(ctx context.Context, expense *models.Expense) error
	// SumByCategory returns only categories that have at least one expense in the range.
	SumByCategory(ctx context.Context, userID int64, dates *models.DateRange) ([]models.CategoryTotal, error)
	// SumTotal is invalid (not zero) when no expense matches.
	SumTotal(ctx context.Context, userID int64, dates *models.DateRange) (decimal.NullDecimal, error)
	ListExpenses(ctx context.Context, userID int64) ([]models.Expense, error)
}
