// Package summary aggregates a user's expenses over calendar windows.
package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/expense-bot/internal/models"
)

type Kind string

const (
	AllTimeKind Kind = "all"
	DailyKind   Kind = "daily"
	WeeklyKind  Kind = "weekly"
	MonthlyKind Kind = "monthly"
)

// Window is a named date range; a nil Range is unbounded.
type Window struct {
	Kind  Kind
	Range *models.DateRange
}

func AllTime() Window {
	return Window{Kind: AllTimeKind}
}

func Daily(today time.Time) Window {
	d := models.Day(today)
	return Window{Kind: DailyKind, Range: &models.DateRange{From: d, To: d}}
}

// Weekly starts on the Monday of the current ISO week.
func Weekly(today time.Time) Window {
	d := models.Day(today)
	offset := (int(d.Weekday()) + 6) % 7
	return Window{Kind: WeeklyKind, Range: &models.DateRange{From: d.AddDate(0, 0, -offset), To: d}}
}

func Monthly(today time.Time) Window {
	d := models.Day(today)
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	return Window{Kind: MonthlyKind, Range: &models.DateRange{From: first, To: d}}
}

// Parse maps a command argument to a window; empty means all-time.
func Parse(arg string, today time.Time) (Window, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(arg))) {
	case "", AllTimeKind, "total":
		return AllTime(), nil
	case DailyKind, "today":
		return Daily(today), nil
	case WeeklyKind, "week":
		return Weekly(today), nil
	case MonthlyKind, "month":
		return Monthly(today), nil
	default:
		return Window{}, fmt.Errorf("unknown period %q", arg)
	}
}

func (w Window) Title() string {
	switch w.Kind {
	case DailyKind:
		return "📅 Today's expenses"
	case WeeklyKind:
		return "📅 This week's expenses"
	case MonthlyKind:
		return "📅 This month's expenses"
	default:
		return "💰 Expense Summary"
	}
}
