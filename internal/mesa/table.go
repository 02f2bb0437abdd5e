package mesa

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruxplay/mesa-engine/internal/balance"
	"github.com/ruxplay/mesa-engine/internal/config"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"github.com/ruxplay/mesa-engine/internal/stream"
	"golang.org/x/exp/slog"
)

// Table is the single writer for one mesa type. Every mutation of the
// current mesa goes through its lock, so a timer-triggered closure and a
// fill-triggered closure cannot both fire, and two bets racing for one
// sector resolve to exactly one winner.
//
// The lock is never held across a balance call: the target sector is held
// pending, the reservation is made unlocked, then the bet is confirmed
// against the (possibly advanced) round state.
type Table struct {
	typ     config.MesaType
	log     *slog.Logger
	balance balance.Service
	bc      *stream.Broadcaster

	mu     sync.Mutex
	mesa   *Mesa
	bets   []Bet
	lastID int64
	closeC chan struct{}
}

func NewTable(typ config.MesaType, log *slog.Logger, balanceSvc balance.Service, bc *stream.Broadcaster) *Table {
	return &Table{
		typ:     typ,
		log:     log,
		balance: balanceSvc,
		bc:      bc,
		closeC:  make(chan struct{}, 1),
	}
}

func (t *Table) Type() config.MesaType {
	return t.typ
}

// OpenNext creates the next round. A still-active round is left untouched;
// only a settled (or absent) mesa is superseded, so there is never more
// than one round of a type accepting bets.
func (t *Table) OpenNext(now time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mesa != nil && t.mesa.Phase != PhaseSettled {
		return t.snapshotLocked()
	}

	t.lastID++

	t.mesa = &Mesa{
		ID:       t.lastID,
		UUID:     uuid.New(),
		TypeID:   t.typ.ID,
		Phase:    PhaseOpen,
		Sectors:  make([]Sector, t.typ.SectorCount),
		OpenedAt: now,
		ClosesAt: now.Add(t.typ.RoundDuration),
	}
	t.bets = nil

	select {
	case <-t.closeC:
	default:
	}

	snap := t.snapshotLocked()

	t.publishLocked(stream.EventMesaOpened, snapshotData(snap))

	return snap
}

func (t *Table) PlaceBet(ctx context.Context, userID int64, sectorIndex int) (*Bet, error) {
	const op = "mesa.table.PlaceBet"

	t.mu.Lock()

	m := t.mesa
	if m == nil {
		t.mu.Unlock()

		return nil, ErrMesaNotFound
	}

	if m.Phase != PhaseOpen {
		t.mu.Unlock()

		return nil, ErrMesaClosed
	}

	if sectorIndex < 0 || sectorIndex >= len(m.Sectors) {
		t.mu.Unlock()

		return nil, ErrBadSector
	}

	if m.Sectors[sectorIndex].taken() {
		t.mu.Unlock()

		return nil, ErrSectorOccupied
	}

	for i := range m.Sectors {
		if m.Sectors[i].UserID == userID {
			t.mu.Unlock()

			return nil, ErrDuplicateBet
		}
	}

	// hold the sector while the debit is in flight
	m.Sectors[sectorIndex] = Sector{UserID: userID, pending: true}
	mesaID := m.ID

	t.mu.Unlock()

	ref := fmt.Sprintf("bet:%s:%d:%d", t.typ.ID, mesaID, sectorIndex)

	reservationID, err := t.balance.Reserve(ctx, userID, t.typ.StakePerSector, ref)
	if err != nil {
		t.releasePending(mesaID, sectorIndex, userID)

		if errors.Is(err, balance.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	t.mu.Lock()

	m = t.mesa
	if m == nil || m.ID != mesaID || m.Phase != PhaseOpen {
		if m != nil && m.ID == mesaID {
			m.Sectors[sectorIndex] = Sector{}
		}

		t.mu.Unlock()

		if err = t.balance.Release(ctx, reservationID); err != nil {
			t.log.Error("failed to release reservation after round closed",
				sl.String("reservation_id", reservationID), sl.Err(err))
		}

		return nil, ErrMesaClosed
	}

	m.Sectors[sectorIndex] = Sector{UserID: userID}
	m.FilledCount++

	bet := Bet{
		UserID:        userID,
		MesaID:        mesaID,
		SectorIndex:   sectorIndex,
		Stake:         t.typ.StakePerSector,
		PlacedAt:      time.Now(),
		ReservationID: reservationID,
	}
	t.bets = append(t.bets, bet)

	t.publishLocked(stream.EventSectorFilled, map[string]interface{}{
		"mesa_id":      mesaID,
		"sector_index": sectorIndex,
		"user_id":      userID,
		"filled_count": m.FilledCount,
		"sectors":      occupantsLocked(m),
	})

	if m.FilledCount == t.typ.SectorCount {
		t.closeLocked()
	}

	t.mu.Unlock()

	return &bet, nil
}

func (t *Table) releasePending(mesaID int64, sectorIndex int, userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.mesa
	if m == nil || m.ID != mesaID {
		return
	}

	if m.Sectors[sectorIndex].pending && m.Sectors[sectorIndex].UserID == userID {
		m.Sectors[sectorIndex] = Sector{}
	}
}

// Close moves an open round to closing. Idempotent: the loser of a race
// between the deadline timer and a full fill is a no-op.
func (t *Table) Close() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closeLocked()
}

func (t *Table) closeLocked() bool {
	if t.mesa == nil || t.mesa.Phase != PhaseOpen {
		return false
	}

	t.mesa.Phase = PhaseClosing

	t.publishLocked(stream.EventClosing, map[string]interface{}{
		"mesa_id":      t.mesa.ID,
		"filled_count": t.mesa.FilledCount,
	})

	select {
	case t.closeC <- struct{}{}:
	default:
	}

	return true
}

// CloseSignal fires once when the current round closes early on a full
// fill (or on the timer path, where the scheduler is already awake).
func (t *Table) CloseSignal() <-chan struct{} {
	return t.closeC
}

// BeginSpin moves a closing round to spinning and returns the occupied
// sector indexes the draw may pick from.
func (t *Table) BeginSpin() ([]int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.mesa
	if m == nil || m.Phase != PhaseClosing {
		return nil, false
	}

	m.Phase = PhaseSpinning

	occupied := make([]int, 0, m.FilledCount)
	for i := range m.Sectors {
		if m.Sectors[i].Occupied() {
			occupied = append(occupied, i)
		}
	}

	t.publishLocked(stream.EventSpinning, map[string]interface{}{
		"mesa_id":          m.ID,
		"spin_duration_ms": t.typ.SpinDuration.Milliseconds(),
	})

	return occupied, true
}

// SettleWith finalizes a spun round with its draw outcome and payouts.
func (t *Table) SettleWith(res *DrawResult, payouts []Payout) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.mesa
	if m == nil || m.Phase != PhaseSpinning {
		return false
	}

	m.Phase = PhaseSettled

	winners := make([]map[string]interface{}, 0, len(payouts))
	for _, p := range payouts {
		winners = append(winners, map[string]interface{}{
			"user_id":      p.UserID,
			"sector_index": p.SectorIndex,
			"amount":       p.Amount,
			"kind":         p.Kind,
		})
	}

	t.publishLocked(stream.EventResult, map[string]interface{}{
		"mesa_id":         m.ID,
		"voided":          false,
		"winning_sector":  res.WinningSector,
		"secondary_left":  res.SecondaryLeft,
		"secondary_right": res.SecondaryRight,
		"source":          res.Source,
		"winners":         winners,
	})

	return true
}

// Void finalizes a closing round without a draw. Used when occupancy never
// reached the configured minimum.
func (t *Table) Void() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.mesa
	if m == nil || m.Phase != PhaseClosing {
		return false
	}

	m.Phase = PhaseSettled

	t.publishLocked(stream.EventResult, map[string]interface{}{
		"mesa_id": m.ID,
		"voided":  true,
		"winners": []map[string]interface{}{},
	})

	return true
}

// Countdown publishes the remaining seconds of the open phase.
func (t *Table) Countdown(secondsLeft int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mesa == nil || t.mesa.Phase != PhaseOpen {
		return
	}

	t.publishLocked(stream.EventCountdown, map[string]interface{}{
		"mesa_id":      t.mesa.ID,
		"seconds_left": secondsLeft,
	})
}

func (t *Table) Snapshot() (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mesa == nil {
		return Snapshot{}, ErrMesaNotFound
	}

	return t.snapshotLocked(), nil
}

// Subscribe atomically captures the current snapshot and registers the
// subscriber, so the snapshot plus the following events always compose to
// a consistent view.
func (t *Table) Subscribe() *stream.Subscriber {
	t.mu.Lock()
	defer t.mu.Unlock()

	var data map[string]interface{}
	if t.mesa != nil {
		data = snapshotData(t.snapshotLocked())
	}

	return t.bc.Subscribe(data)
}

func (t *Table) Unsubscribe(sub *stream.Subscriber) {
	t.bc.Unsubscribe(sub)
}

// Bets returns a copy of the current round's accepted bets.
func (t *Table) Bets() []Bet {
	t.mu.Lock()
	defer t.mu.Unlock()

	bets := make([]Bet, len(t.bets))
	copy(bets, t.bets)

	return bets
}

func (t *Table) Phase() (Phase, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mesa == nil {
		return "", ErrMesaNotFound
	}

	return t.mesa.Phase, nil
}

func (t *Table) snapshotLocked() Snapshot {
	m := t.mesa

	return Snapshot{
		MesaID:      m.ID,
		UUID:        m.UUID.String(),
		MesaType:    m.TypeID,
		Phase:       m.Phase,
		Sectors:     occupantsLocked(m),
		FilledCount: m.FilledCount,
		ClosesAt:    m.ClosesAt,
	}
}

func (t *Table) publishLocked(event stream.EventType, data map[string]interface{}) {
	t.bc.Publish(event, data)
}

func occupantsLocked(m *Mesa) []int64 {
	occupants := make([]int64, len(m.Sectors))
	for i := range m.Sectors {
		if m.Sectors[i].Occupied() {
			occupants[i] = m.Sectors[i].UserID
		}
	}

	return occupants
}

func snapshotData(s Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"mesa_id":      s.MesaID,
		"uuid":         s.UUID,
		"mesa_type":    s.MesaType,
		"phase":        string(s.Phase),
		"sectors":      s.Sectors,
		"filled_count": s.FilledCount,
		"closes_at":    s.ClosesAt,
	}
}
