package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xaenox/expense-bot/internal/models"
	"github.com/xaenox/expense-bot/internal/storage"
)

// Store is the part of storage.Storage the engine reads from.
type Store interface {
	FindUser(ctx context.Context, externalID int64) (int64, error)
	SumByCategory(ctx context.Context, userID int64, dates *models.DateRange) ([]models.CategoryTotal, error)
	SumTotal(ctx context.Context, userID int64, dates *models.DateRange) (decimal.NullDecimal, error)
}

type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Report is the per-category breakdown and grand total of one window.
type Report struct {
	Window     Window
	Categories []models.CategoryTotal
	Total      decimal.Decimal
	// Empty is set when no expense fell into the window.
	Empty bool
}

// Share is one category's portion of the report total.
type Share struct {
	Category string
	Amount   decimal.Decimal
	Percent  decimal.Decimal
}

// Summarize never creates the user: someone who never added an expense gets an empty report.
func (e *Engine) Summarize(ctx context.Context, externalID int64, w Window) (Report, error) {
	report := Report{Window: w, Total: decimal.Zero, Empty: true}

	userID, err := e.store.FindUser(ctx, externalID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("summarize %s: %w", w.Kind, err)
	}

	categories, err := e.store.SumByCategory(ctx, userID, w.Range)
	if err != nil {
		return report, fmt.Errorf("summarize %s: %w", w.Kind, err)
	}

	total, err := e.store.SumTotal(ctx, userID, w.Range)
	if err != nil {
		return report, fmt.Errorf("summarize %s: %w", w.Kind, err)
	}

	report.Categories = categories
	if total.Valid {
		report.Total = total.Decimal
		report.Empty = false
	}
	return report, nil
}

// Format renders the report the same way for every window.
func (r Report) Format() string {
	var b strings.Builder
	b.WriteString(r.Window.Title())
	b.WriteString(":\n\n")

	if r.Empty {
		b.WriteString("Nothing recorded for this period yet.\n")
	}
	for _, ct := range r.Categories {
		fmt.Fprintf(&b, "%s: %s\n", ct.Category, models.FormatMoney(ct.Total))
	}

	fmt.Fprintf(&b, "\nTotal: %s", models.FormatMoney(r.Total))
	return b.String()
}

// Shares returns the percentage of the total spent per category, rounded to one decimal.
func (r Report) Shares() []Share {
	if !r.Total.IsPositive() {
		return nil
	}

	hundred := decimal.NewFromInt(100)
	shares := make([]Share, 0, len(r.Categories))
	for _, ct := range r.Categories {
		shares = append(shares, Share{
			Category: ct.Category,
			Amount:   ct.Total,
			Percent:  ct.Total.Mul(hundred).Div(r.Total).Round(1),
		})
	}
	return shares
}
