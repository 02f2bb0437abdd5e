package mesa

import (
	"context"
	"time"

	"github.com/ruxplay/mesa-engine/internal/config"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"golang.org/x/exp/slog"
)

// Scheduler drives the round lifecycle of one mesa type: open, countdown,
// close on deadline or full fill, spin, settle, archive, next round.
type Scheduler struct {
	typ     config.MesaType
	log     *slog.Logger
	table   *Table
	source  DrawSource
	settler *Settler
	history HistorySink
}

func NewScheduler(
	typ config.MesaType,
	log *slog.Logger,
	table *Table,
	source DrawSource,
	settler *Settler,
	history HistorySink) *Scheduler {
	return &Scheduler{
		typ:     typ,
		log:     log,
		table:   table,
		source:  source,
		settler: settler,
		history: history,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	for ctx.Err() == nil {
		s.runRound(ctx)
	}
}

func (s *Scheduler) runRound(ctx context.Context) {
	snap := s.table.OpenNext(time.Now())

	s.log.Info("mesa opened",
		sl.String("mesa_type", s.typ.ID),
		sl.Int64("mesa_id", snap.MesaID),
		sl.Any("closes_at", snap.ClosesAt))

	timer := time.NewTimer(time.Until(snap.ClosesAt))
	defer timer.Stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	waiting := true
	for waiting {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			waiting = false
		case <-s.table.CloseSignal():
			waiting = false
		case <-ticker.C:
			left := int(time.Until(snap.ClosesAt).Round(time.Second) / time.Second)
			if left > 0 && left <= s.typ.CountdownFrom {
				s.table.Countdown(left)
			}
		}
	}

	// idempotent with the fill-triggered closure
	s.table.Close()

	bets := s.table.Bets()

	if len(bets) == 0 || len(bets) < s.typ.MinFillToClose {
		if !s.table.Void() {
			return
		}

		if len(bets) > 0 {
			s.settler.Refund(s.typ.ID, snap.MesaID, bets)
		}

		s.log.Info("mesa voided",
			sl.String("mesa_type", s.typ.ID),
			sl.Int64("mesa_id", snap.MesaID),
			sl.Int("bets", len(bets)))

		if final, err := s.table.Snapshot(); err == nil {
			s.history.SaveRound(RoundRecord{Snapshot: final, Bets: bets, Voided: true})
		}

		return
	}

	occupied, ok := s.table.BeginSpin()
	if !ok {
		return
	}

	spinStart := time.Now()

	res := s.source.Draw(ctx, DrawRequest{
		MesaID:   snap.MesaID,
		MesaUUID: snap.UUID,
		Occupied: occupied,
		Window:   s.typ.SpinDuration,
	})

	// the result lands when the client animation window ends
	if remaining := s.typ.SpinDuration - time.Since(spinStart); remaining > 0 {
		select {
		case <-time.After(remaining):
		case <-ctx.Done():
		}
	}

	payouts := ComputePayouts(s.typ, bets, &res)

	s.settler.Settle(s.typ.ID, snap.MesaID, payouts)
	s.table.SettleWith(&res, payouts)

	s.log.Info("mesa settled",
		sl.String("mesa_type", s.typ.ID),
		sl.Int64("mesa_id", snap.MesaID),
		sl.Int("winning_sector", res.WinningSector),
		sl.String("source", res.Source))

	if final, err := s.table.Snapshot(); err == nil {
		s.history.SaveRound(RoundRecord{Snapshot: final, Bets: bets, Result: &res})
	}
}
