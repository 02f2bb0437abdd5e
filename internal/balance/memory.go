package balance

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryService is an in-process Service used by tests and the local env.
type MemoryService struct {
	mu           sync.Mutex
	balances     map[int64]int64
	reservations map[string]reservation
	credited     map[string]bool
}

type reservation struct {
	userID int64
	amount int64
	held   bool
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		balances:     make(map[int64]int64),
		reservations: make(map[string]reservation),
		credited:     make(map[string]bool),
	}
}

func (s *MemoryService) SetBalance(userID int64, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[userID] = amount
}

func (s *MemoryService) Balance(userID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balances[userID]
}

func (s *MemoryService) Reserve(_ context.Context, userID int64, amount int64, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.balances[userID]
	if !ok {
		return "", ErrUserNotFound
	}

	if current < amount {
		return "", ErrInsufficientBalance
	}

	s.balances[userID] = current - amount

	id := uuid.New().String()
	s.reservations[id] = reservation{userID: userID, amount: amount, held: true}

	return id, nil
}

func (s *MemoryService) Release(_ context.Context, reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[reservationID]
	if !ok {
		return ErrReservationNotFound
	}

	if !res.held {
		return nil
	}

	res.held = false
	s.reservations[reservationID] = res
	s.balances[res.userID] += res.amount

	return nil
}

func (s *MemoryService) Credit(_ context.Context, userID int64, amount int64, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.credited[ref] {
		return nil
	}

	if _, ok := s.balances[userID]; !ok {
		return ErrUserNotFound
	}

	s.credited[ref] = true
	s.balances[userID] += amount

	return nil
}
