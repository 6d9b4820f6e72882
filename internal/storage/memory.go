package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xaenox/expense-bot/internal/models"
)

type MemoryStorage struct {
	mu         sync.RWMutex
	users      map[int64]*models.User // by internal id
	byExternal map[int64]int64
	expenses   []models.Expense
	nextUserID int64
	nextID     int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:      make(map[int64]*models.User),
		byExternal: make(map[int64]int64),
	}
}

func (s *MemoryStorage) EnsureUser(ctx context.Context, externalID int64, displayName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.byExternal[externalID]; exists {
		s.users[id].DisplayName = displayName
		return id, nil
	}

	s.nextUserID++
	user := &models.User{
		ID:          s.nextUserID,
		ExternalID:  externalID,
		DisplayName: displayName,
		CreatedAt:   time.Now(),
	}
	s.users[user.ID] = user
	s.byExternal[externalID] = user.ID
	return user.ID, nil
}

func (s *MemoryStorage) FindUser(ctx context.Context, externalID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, exists := s.byExternal[externalID]; exists {
		return id, nil
	}
	return 0, ErrUserNotFound
}

func (s *MemoryStorage) RecordExpense(ctx context.Context, expense *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[expense.UserID]; !exists {
		return wrap("record expense", ErrUserNotFound)
	}
	if expense.Date.IsZero() {
		expense.Date = time.Now()
	}
	expense.Date = models.Day(expense.Date)

	s.nextID++
	expense.ID = s.nextID
	s.expenses = append(s.expenses, *expense)
	return nil
}

func (s *MemoryStorage) SumByCategory(ctx context.Context, userID int64, dates *models.DateRange) ([]models.CategoryTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[string]decimal.Decimal)
	for _, e := range s.expenses {
		if e.UserID != userID || !dates.Contains(e.Date) {
			continue
		}
		sums[e.Category] = sums[e.Category].Add(e.Amount)
	}

	totals := make([]models.CategoryTotal, 0, len(sums))
	for category, total := range sums {
		totals = append(totals, models.CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].Total.Cmp(totals[j].Total); c != 0 {
			return c > 0
		}
		return totals[i].Category < totals[j].Category
	})

	return totals, nil
}

func (s *MemoryStorage) SumTotal(ctx context.Context, userID int64, dates *models.DateRange) (decimal.NullDecimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total decimal.NullDecimal
	for _, e := range s.expenses {
		if e.UserID != userID || !dates.Contains(e.Date) {
			continue
		}
		total.Decimal = total.Decimal.Add(e.Amount)
		total.Valid = true
	}
	return total, nil
}

func (s *MemoryStorage) ListExpenses(ctx context.Context, userID int64) ([]models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expenses []models.Expense
	for _, e := range s.expenses {
		if e.UserID == userID {
			expenses = append(expenses, e)
		}
	}
	// stable keeps insertion (id) order within a day
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].Date.Before(expenses[j].Date)
	})
	return expenses, nil
}

// UserCount is used by tests to check upsert idempotence.
func (s *MemoryStorage) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
