package repository

import (
	"fmt"
	"time"

	"github.com/ruxplay/mesa-engine/internal/http-server/handlers/mysql"
	"github.com/ruxplay/mesa-engine/internal/mesa"
)

type BetRepository struct {
	dbhandler mysql.Handler
}

func NewBetRepository(dbhandler mysql.Handler) *BetRepository {
	return &BetRepository{dbhandler: dbhandler}
}

func (repo *BetRepository) SaveBet(mesaType string, bet mesa.Bet) error {
	const op = "repository.bet.SaveBet"

	const query = "INSERT INTO mesa_bets(mesa_type, mesa_round, user_id, sector_index, stake, placed_at, created_at) " +
		"VALUES(?, ?, ?, ?, ?, ?, ?)"

	_, err := repo.dbhandler.PrepareAndExecute(query,
		mesaType, bet.MesaID, bet.UserID, bet.SectorIndex, bet.Stake, bet.PlacedAt, time.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
