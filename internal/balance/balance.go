package balance

import (
	"context"
	"errors"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")
	ErrReservationNotFound = errors.New("reservation not found")
)

// Service is the single arbiter of user funds. Every call is atomic on its
// own; the engine never holds a table lock across a call into it.
//
// Reserve checks and debits the stake in one step. Release returns a
// reservation that never turned into a confirmed bet. Credit pays out a
// winner and is safe to retry with the same ref.
type Service interface {
	Reserve(ctx context.Context, userID int64, amount int64, ref string) (string, error)
	Release(ctx context.Context, reservationID string) error
	Credit(ctx context.Context, userID int64, amount int64, ref string) error
}
