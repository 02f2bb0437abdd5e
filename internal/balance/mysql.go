package balance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ruxplay/mesa-engine/internal/http-server/handlers/mysql"
)

// MySQLService keeps balances, reservations and the operation ledger in one
// schema and performs every operation inside a single transaction with a
// row lock on the balance, so check-and-debit cannot race.
type MySQLService struct {
	dbhandler mysql.Handler
}

func NewMySQLService(dbhandler mysql.Handler) *MySQLService {
	return &MySQLService{dbhandler: dbhandler}
}

func (s *MySQLService) Reserve(ctx context.Context, userID int64, amount int64, ref string) (string, error) {
	const op = "balance.mysql.Reserve"

	tx, err := s.dbhandler.Conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	var existing string

	err = tx.QueryRowContext(ctx,
		"SELECT id FROM balance_reservations WHERE ref = ?", ref).Scan(&existing)
	if err == nil {
		return existing, tx.Commit()
	}

	if err != sql.ErrNoRows {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var current int64

	err = tx.QueryRowContext(ctx,
		"SELECT balance FROM user_balances WHERE user_id = ? FOR UPDATE", userID).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrUserNotFound
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if current < amount {
		return "", ErrInsufficientBalance
	}

	now := time.Now()

	if _, err = tx.ExecContext(ctx,
		"UPDATE user_balances SET balance = balance - ?, updated_at = ? WHERE user_id = ?",
		amount, now, userID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	reservationID := uuid.New().String()

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO balance_reservations(id, user_id, ref, amount, status, created_at) "+
			"VALUES(?, ?, ?, ?, 'held', ?)",
		reservationID, userID, ref, amount, now); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO balance_transactions(user_id, value, type, ref, created_at) "+
			"VALUES(?, ?, 'outcome', ?, ?)",
		userID, amount, "reserve:"+ref, now); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return reservationID, nil
}

func (s *MySQLService) Release(ctx context.Context, reservationID string) error {
	const op = "balance.mysql.Release"

	tx, err := s.dbhandler.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	var (
		userID int64
		amount int64
		status string
	)

	err = tx.QueryRowContext(ctx,
		"SELECT user_id, amount, status FROM balance_reservations WHERE id = ? FOR UPDATE",
		reservationID).Scan(&userID, &amount, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrReservationNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if status != "held" {
		return tx.Commit()
	}

	now := time.Now()

	if _, err = tx.ExecContext(ctx,
		"UPDATE user_balances SET balance = balance + ?, updated_at = ? WHERE user_id = ?",
		amount, now, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE balance_reservations SET status = 'released' WHERE id = ?",
		reservationID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO balance_transactions(user_id, value, type, ref, created_at) "+
			"VALUES(?, ?, 'income', ?, ?)",
		userID, amount, "release:"+reservationID, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *MySQLService) Credit(ctx context.Context, userID int64, amount int64, ref string) error {
	const op = "balance.mysql.Credit"

	tx, err := s.dbhandler.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	var existing int64

	err = tx.QueryRowContext(ctx,
		"SELECT id FROM balance_transactions WHERE ref = ?", "credit:"+ref).Scan(&existing)
	if err == nil {
		return tx.Commit()
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()

	res, err := tx.ExecContext(ctx,
		"UPDATE user_balances SET balance = balance + ?, updated_at = ? WHERE user_id = ?",
		amount, now, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if affected == 0 {
		return ErrUserNotFound
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO balance_transactions(user_id, value, type, ref, created_at) "+
			"VALUES(?, ?, 'income', ?, ?)",
		userID, amount, "credit:"+ref, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
