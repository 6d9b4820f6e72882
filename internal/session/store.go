// Package session keeps the short-lived state of the two-step add flow.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PendingAdd is an amount waiting for the user to pick a category.
type PendingAdd struct {
	ID          string
	Amount      decimal.Decimal
	Description string
	Suggested   string
	ChatID      int64
	// PromptMessageID is the message carrying the category keyboard, 0 until sent.
	PromptMessageID int
	CreatedAt       time.Time
	expiresAt       time.Time
}

// Store holds at most one pending add per user. A newer Put replaces the older one.
type Store struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[int64]*PendingAdd
	now   func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:   ttl,
		items: make(map[int64]*PendingAdd),
		now:   time.Now,
	}
}

// Put stores p for userID and returns the session it replaced, if any live one existed.
func (s *Store) Put(userID int64, p PendingAdd) (stored PendingAdd, replaced *PendingAdd) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now
	p.expiresAt = now.Add(s.ttl)

	if old, exists := s.items[userID]; exists && now.Before(old.expiresAt) {
		prev := *old
		replaced = &prev
	}
	s.items[userID] = &p
	return p, replaced
}

// AttachPrompt records the keyboard message of a session if it is still the current one.
func (s *Store) AttachPrompt(userID int64, sessionID string, messageID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.items[userID]
	if !exists || p.ID != sessionID {
		return false
	}
	p.PromptMessageID = messageID
	return true
}

// Take removes and returns the pending add of userID. Expired sessions count as absent.
func (s *Store) Take(userID int64) (PendingAdd, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.items[userID]
	if !exists {
		return PendingAdd{}, false
	}
	delete(s.items, userID)

	if !s.now().Before(p.expiresAt) {
		return PendingAdd{}, false
	}
	return *p, true
}

// CleanExpired removes all expired sessions and returns how many were removed.
func (s *Store) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for userID, p := range s.items {
		if !now.Before(p.expiresAt) {
			delete(s.items, userID)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
