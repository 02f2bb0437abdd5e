package mesa

import (
	"context"
	"fmt"
	"time"

	"github.com/ruxplay/mesa-engine/internal/balance"
	"github.com/ruxplay/mesa-engine/internal/config"
	"github.com/ruxplay/mesa-engine/internal/job"
	"github.com/ruxplay/mesa-engine/internal/lib/converter"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"golang.org/x/exp/slog"
)

const (
	PayoutMain      = "main"
	PayoutSecondary = "secondary"
)

type Payout struct {
	UserID      int64
	SectorIndex int
	Amount      int64
	Kind        string
}

// ComputePayouts resolves the winners of a draw. The occupant of the
// winning sector gets the main multiplier; occupants of the configured
// secondary offsets (modulo sector count) get the secondary multiplier.
// Unoccupied sectors pay nobody. SecondaryLeft/Right on the result are
// filled in for the client wheel rendering.
func ComputePayouts(typ config.MesaType, bets []Bet, res *DrawResult) []Payout {
	occupants := make(map[int]Bet, len(bets))
	for _, b := range bets {
		occupants[b.SectorIndex] = b
	}

	var payouts []Payout

	if b, ok := occupants[res.WinningSector]; ok {
		payouts = append(payouts, Payout{
			UserID:      b.UserID,
			SectorIndex: b.SectorIndex,
			Amount:      converter.MultiplyCents(b.Stake, typ.MainMultiplier),
			Kind:        PayoutMain,
		})
	}

	res.SecondaryLeft = -1
	res.SecondaryRight = -1

	for _, offset := range typ.SecondaryOffsets {
		sector := ((res.WinningSector+offset)%typ.SectorCount + typ.SectorCount) % typ.SectorCount
		if sector == res.WinningSector {
			continue
		}

		if offset < 0 {
			res.SecondaryLeft = sector
		} else {
			res.SecondaryRight = sector
		}

		b, ok := occupants[sector]
		if !ok {
			continue
		}

		payouts = append(payouts, Payout{
			UserID:      b.UserID,
			SectorIndex: b.SectorIndex,
			Amount:      converter.MultiplyCents(b.Stake, typ.SecondaryMultiplier),
			Kind:        PayoutSecondary,
		})
	}

	return payouts
}

// Settler credits winners through the balance service. Each credit is an
// independent retry job: one failing winner never blocks the others or
// the next round.
type Settler struct {
	log     *slog.Logger
	balance balance.Service
	queue   job.Queue

	maxAttempts int
	backoff     time.Duration
}

func NewSettler(log *slog.Logger, balanceSvc balance.Service, queue job.Queue) *Settler {
	return &Settler{
		log:         log,
		balance:     balanceSvc,
		queue:       queue,
		maxAttempts: 5,
		backoff:     500 * time.Millisecond,
	}
}

func (s *Settler) Settle(typeID string, mesaID int64, payouts []Payout) {
	for _, p := range payouts {
		p := p

		ref := fmt.Sprintf("%s:%d:%d:%s", typeID, mesaID, p.SectorIndex, p.Kind)
		name := fmt.Sprintf("credit %s", ref)

		task := func() error {
			return s.balance.Credit(context.Background(), p.UserID, p.Amount, ref)
		}

		s.queue.Dispatch(job.NewRetryJob(name, task, s.maxAttempts, s.backoff, s.queue, s.log), 0)
	}

	if len(payouts) > 0 {
		s.log.Info("settlement dispatched",
			sl.String("mesa_type", typeID),
			sl.Int64("mesa_id", mesaID),
			sl.Int("payouts", len(payouts)))
	}
}

// Refund releases the reservations of a voided round's bets, each as an
// independent retry job.
func (s *Settler) Refund(typeID string, mesaID int64, bets []Bet) {
	for _, b := range bets {
		b := b

		name := fmt.Sprintf("release %s:%d:%d", typeID, mesaID, b.SectorIndex)

		task := func() error {
			return s.balance.Release(context.Background(), b.ReservationID)
		}

		s.queue.Dispatch(job.NewRetryJob(name, task, s.maxAttempts, s.backoff, s.queue, s.log), 0)
	}
}
