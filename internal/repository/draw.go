package repository

import (
	"fmt"
	"time"

	"github.com/ruxplay/mesa-engine/internal/http-server/handlers/mysql"
	"github.com/ruxplay/mesa-engine/internal/mesa"
)

type DrawRepository struct {
	dbhandler mysql.Handler
}

func NewDrawRepository(dbhandler mysql.Handler) *DrawRepository {
	return &DrawRepository{dbhandler: dbhandler}
}

func (repo *DrawRepository) SaveDraw(mesaType string, res mesa.DrawResult) error {
	const op = "repository.draw.SaveDraw"

	const query = "INSERT INTO mesa_draws(mesa_type," +
		" mesa_round," +
		" winning_sector," +
		" secondary_left," +
		" secondary_right," +
		" source," +
		" client_seed," +
		" server_seed," +
		" resulted_hash," +
		" nonce," +
		" drawn_at," +
		" created_at) " +
		"VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	_, err := repo.dbhandler.PrepareAndExecute(query,
		mesaType,
		res.MesaID,
		res.WinningSector,
		res.SecondaryLeft,
		res.SecondaryRight,
		res.Source,
		res.ClientSeed,
		res.ServerSeed,
		res.Hash,
		res.Nonce,
		res.DrawnAt,
		time.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type DrawRow struct {
	MesaRound      int64     `json:"mesa_round"`
	WinningSector  int       `json:"winning_sector"`
	SecondaryLeft  int       `json:"secondary_left"`
	SecondaryRight int       `json:"secondary_right"`
	Source         string    `json:"source"`
	DrawnAt        time.Time `json:"drawn_at"`
}

func (repo *DrawRepository) LastDraws(mesaType string, limit int) ([]DrawRow, error) {
	const op = "repository.draw.LastDraws"

	const query = "SELECT mesa_round, winning_sector, secondary_left, secondary_right, source, drawn_at " +
		"FROM mesa_draws WHERE mesa_type = ? ORDER BY mesa_round DESC LIMIT ?"

	rows, err := repo.dbhandler.PrepareAndQuery(query, mesaType, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var draws []DrawRow

	for rows.Next() {
		var row DrawRow

		err = rows.Scan(&row.MesaRound,
			&row.WinningSector,
			&row.SecondaryLeft,
			&row.SecondaryRight,
			&row.Source,
			&row.DrawnAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		draws = append(draws, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return draws, nil
}
