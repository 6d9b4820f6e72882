package session

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestStore(ttl time.Duration) (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)}
	s := NewStore(ttl)
	s.now = clock.Now
	return s, clock
}

func TestStore_PutTake(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	stored, replaced := s.Put(1, PendingAdd{Amount: decimal.NewFromInt(10), ChatID: 5})
	assert.Nil(t, replaced)
	assert.NotEmpty(t, stored.ID)

	p, ok := s.Take(1)
	require.True(t, ok)
	assert.Equal(t, stored.ID, p.ID)
	assert.True(t, decimal.NewFromInt(10).Equal(p.Amount))

	_, ok = s.Take(1)
	assert.False(t, ok, "sessions are read-once")
}

func TestStore_LastWriterWins(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	first, _ := s.Put(1, PendingAdd{Amount: decimal.NewFromInt(10)})
	_, replaced := s.Put(1, PendingAdd{Amount: decimal.NewFromInt(20)})

	require.NotNil(t, replaced)
	assert.Equal(t, first.ID, replaced.ID)

	p, ok := s.Take(1)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(20).Equal(p.Amount))
	assert.Equal(t, 0, s.Len())
}

func TestStore_UsersAreIndependent(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	s.Put(1, PendingAdd{Amount: decimal.NewFromInt(10)})
	s.Put(2, PendingAdd{Amount: decimal.NewFromInt(20)})

	p, ok := s.Take(1)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(10).Equal(p.Amount))
	assert.Equal(t, 1, s.Len())
}

func TestStore_Expiry(t *testing.T) {
	s, clock := newTestStore(time.Minute)

	s.Put(1, PendingAdd{Amount: decimal.NewFromInt(10)})
	clock.now = clock.now.Add(time.Minute)

	_, ok := s.Take(1)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	s.Put(2, PendingAdd{Amount: decimal.NewFromInt(1)})
	clock.now = clock.now.Add(2 * time.Minute)
	_, replaced := s.Put(2, PendingAdd{Amount: decimal.NewFromInt(2)})
	assert.Nil(t, replaced, "an expired session is not reported as replaced")
}

func TestStore_AttachPrompt(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	first, _ := s.Put(1, PendingAdd{Amount: decimal.NewFromInt(10)})
	second, _ := s.Put(1, PendingAdd{Amount: decimal.NewFromInt(20)})

	assert.False(t, s.AttachPrompt(1, first.ID, 100))
	assert.True(t, s.AttachPrompt(1, second.ID, 101))
	assert.False(t, s.AttachPrompt(2, second.ID, 101))

	p, ok := s.Take(1)
	require.True(t, ok)
	assert.Equal(t, 101, p.PromptMessageID)
}

func TestJanitor_Sweep(t *testing.T) {
	s, clock := newTestStore(time.Minute)
	s.Put(1, PendingAdd{Amount: decimal.NewFromInt(1)})
	s.Put(2, PendingAdd{Amount: decimal.NewFromInt(2)})
	clock.now = clock.now.Add(30 * time.Second)
	s.Put(3, PendingAdd{Amount: decimal.NewFromInt(3)})
	clock.now = clock.now.Add(45 * time.Second)

	var live int
	j := NewJanitor(s, time.Hour, zap.NewNop())
	j.OnSweep = func(n int) { live = n }

	assert.Equal(t, 2, j.Sweep())
	assert.Equal(t, 1, live)
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	j := NewJanitor(s, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
