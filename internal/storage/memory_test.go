package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/xaenox/expense-bot/internal/models"
)

type MemoryStorageSuite struct {
	suite.Suite
	store *MemoryStorage
	ctx   context.Context
}

func TestMemoryStorage(t *testing.T) {
	suite.Run(t, new(MemoryStorageSuite))
}

func (s *MemoryStorageSuite) SetupTest() {
	s.store = NewMemoryStorage()
	s.ctx = context.Background()
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *MemoryStorageSuite) record(userID int64, amount, category string, date time.Time) {
	err := s.store.RecordExpense(s.ctx, &models.Expense{
		UserID:   userID,
		Amount:   decimal.RequireFromString(amount),
		Category: category,
		Date:     date,
	})
	s.Require().NoError(err)
}

func (s *MemoryStorageSuite) TestEnsureUser_Idempotent() {
	first, err := s.store.EnsureUser(s.ctx, 42, "Ann")
	s.Require().NoError(err)

	second, err := s.store.EnsureUser(s.ctx, 42, "Ann B.")
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Equal(1, s.store.UserCount())

	found, err := s.store.FindUser(s.ctx, 42)
	s.NoError(err)
	s.Equal(first, found)
}

func (s *MemoryStorageSuite) TestEnsureUser_Concurrent() {
	var wg sync.WaitGroup
	ids := make([]int64, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.store.EnsureUser(s.ctx, 7, "Bob")
			assert.NoError(s.T(), err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		s.Equal(ids[0], id)
	}
	s.Equal(1, s.store.UserCount())
}

func (s *MemoryStorageSuite) TestFindUser_Missing() {
	_, err := s.store.FindUser(s.ctx, 404)
	s.ErrorIs(err, ErrUserNotFound)
}

func (s *MemoryStorageSuite) TestRecordExpense_UnknownUser() {
	err := s.store.RecordExpense(s.ctx, &models.Expense{
		UserID:   99,
		Amount:   decimal.NewFromInt(5),
		Category: "Food",
	})

	var storeErr *Error
	s.Require().ErrorAs(err, &storeErr)
	s.ErrorIs(err, ErrUserNotFound)
}

func (s *MemoryStorageSuite) TestRecordExpense_DefaultsToToday() {
	userID, err := s.store.EnsureUser(s.ctx, 1, "Ann")
	s.Require().NoError(err)

	expense := &models.Expense{UserID: userID, Amount: decimal.NewFromInt(3), Category: "Food"}
	s.Require().NoError(s.store.RecordExpense(s.ctx, expense))

	s.NotZero(expense.ID)
	s.Equal(models.Day(time.Now()), expense.Date)
}

func (s *MemoryStorageSuite) TestSumByCategory_OmitsEmptyCategories() {
	userID, err := s.store.EnsureUser(s.ctx, 1, "Ann")
	s.Require().NoError(err)
	s.record(userID, "12.50", "Food", day(2024, 1, 10))

	totals, err := s.store.SumByCategory(s.ctx, userID, nil)
	s.Require().NoError(err)
	s.Require().Len(totals, 1)
	s.Equal("Food", totals[0].Category)
	s.True(decimal.RequireFromString("12.50").Equal(totals[0].Total))
}

func (s *MemoryStorageSuite) TestSumByCategory_OrderAndIsolation() {
	ann, _ := s.store.EnsureUser(s.ctx, 1, "Ann")
	bob, _ := s.store.EnsureUser(s.ctx, 2, "Bob")

	s.record(ann, "5", "Travel", day(2024, 1, 1))
	s.record(ann, "20", "Food", day(2024, 1, 2))
	s.record(ann, "5", "Health", day(2024, 1, 3))
	s.record(bob, "100", "Clothes", day(2024, 1, 3))

	totals, err := s.store.SumByCategory(s.ctx, ann, nil)
	s.Require().NoError(err)
	s.Require().Len(totals, 3)
	s.Equal("Food", totals[0].Category)
	s.Equal("Health", totals[1].Category)
	s.Equal("Travel", totals[2].Category)
}

func (s *MemoryStorageSuite) TestSumTotal_Windows() {
	userID, _ := s.store.EnsureUser(s.ctx, 1, "Ann")
	s.record(userID, "10.00", "Food", day(2024, 1, 1))
	s.record(userID, "20.25", "Travel", day(2024, 1, 15))
	s.record(userID, "30.00", "Food", day(2024, 2, 1))

	month := &models.DateRange{From: day(2024, 1, 1), To: day(2024, 1, 20)}
	total, err := s.store.SumTotal(s.ctx, userID, month)
	s.Require().NoError(err)
	s.True(total.Valid)
	s.True(decimal.RequireFromString("30.25").Equal(total.Decimal))

	week := &models.DateRange{From: day(2024, 1, 15), To: day(2024, 1, 20)}
	total, err = s.store.SumTotal(s.ctx, userID, week)
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("20.25").Equal(total.Decimal))

	today := &models.DateRange{From: day(2024, 1, 20), To: day(2024, 1, 20)}
	total, err = s.store.SumTotal(s.ctx, userID, today)
	s.Require().NoError(err)
	s.False(total.Valid)

	totals, err := s.store.SumByCategory(s.ctx, userID, today)
	s.Require().NoError(err)
	s.Empty(totals)
}

func (s *MemoryStorageSuite) TestListExpenses_OrderedByDate() {
	userID, _ := s.store.EnsureUser(s.ctx, 1, "Ann")
	s.record(userID, "3", "Food", day(2024, 3, 1))
	s.record(userID, "1", "Food", day(2024, 1, 1))
	s.record(userID, "2", "Travel", day(2024, 2, 1))

	expenses, err := s.store.ListExpenses(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(expenses, 3)
	for i, want := range []string{"1", "2", "3"} {
		s.True(decimal.RequireFromString(want).Equal(expenses[i].Amount))
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := wrap("ping", ErrUserNotFound)
	require.Error(t, err)
	assert.Equal(t, "storage: ping: user not found", err.Error())
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, wrap("ping", nil))
}
