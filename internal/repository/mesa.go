package repository

import (
	"fmt"
	"time"

	"github.com/ruxplay/mesa-engine/internal/http-server/handlers/mysql"
	"github.com/ruxplay/mesa-engine/internal/mesa"
)

type MesaRepository struct {
	dbhandler mysql.Handler
}

func NewMesaRepository(dbhandler mysql.Handler) *MesaRepository {
	return &MesaRepository{dbhandler: dbhandler}
}

func (repo *MesaRepository) SaveRound(snap mesa.Snapshot, voided bool) error {
	const op = "repository.mesa.SaveRound"

	const query = "INSERT INTO mesa_rounds(mesa_type, round, uuid, filled_count, voided, closes_at, created_at) " +
		"VALUES(?, ?, ?, ?, ?, ?, ?)"

	_, err := repo.dbhandler.PrepareAndExecute(query,
		snap.MesaType, snap.MesaID, snap.UUID, snap.FilledCount, voided, snap.ClosesAt, time.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
