package repository

import (
	"github.com/ruxplay/mesa-engine/internal/job"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"github.com/ruxplay/mesa-engine/internal/mesa"
	"golang.org/x/exp/slog"
)

// Archive persists settled rounds for audit. Writes run on the job queue;
// a failed write is logged and dropped, never allowed to block gameplay.
type Archive struct {
	log     *slog.Logger
	queue   job.Queue
	mesaRep *MesaRepository
	betRep  *BetRepository
	drawRep *DrawRepository
}

func NewArchive(
	log *slog.Logger,
	queue job.Queue,
	mesaRep *MesaRepository,
	betRep *BetRepository,
	drawRep *DrawRepository) *Archive {
	return &Archive{
		log:     log,
		queue:   queue,
		mesaRep: mesaRep,
		betRep:  betRep,
		drawRep: drawRep,
	}
}

func (a *Archive) SaveRound(rec mesa.RoundRecord) {
	a.queue.Dispatch(&archiveJob{archive: a, rec: rec}, 0)
}

type archiveJob struct {
	archive *Archive
	rec     mesa.RoundRecord
}

func (j *archiveJob) Execute() {
	a := j.archive
	rec := j.rec

	if err := a.mesaRep.SaveRound(rec.Snapshot, rec.Voided); err != nil {
		a.log.Error("failed to archive round", sl.Int64("mesa_id", rec.Snapshot.MesaID), sl.Err(err))
	}

	for _, bet := range rec.Bets {
		if err := a.betRep.SaveBet(rec.Snapshot.MesaType, bet); err != nil {
			a.log.Error("failed to archive bet", sl.Int64("mesa_id", bet.MesaID), sl.Err(err))
		}
	}

	if rec.Result != nil {
		if err := a.drawRep.SaveDraw(rec.Snapshot.MesaType, *rec.Result); err != nil {
			a.log.Error("failed to archive draw", sl.Int64("mesa_id", rec.Result.MesaID), sl.Err(err))
		}
	}
}
