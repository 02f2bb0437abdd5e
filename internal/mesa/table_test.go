package mesa

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ruxplay/mesa-engine/internal/balance"
	"github.com/ruxplay/mesa-engine/internal/config"
	"github.com/ruxplay/mesa-engine/internal/stream"
	"golang.org/x/exp/slog"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

func testType() config.MesaType {
	return config.MesaType{
		ID:                  "150",
		SectorCount:         15,
		StakePerSector:      15000,
		MainMultiplier:      10.5,
		SecondaryMultiplier: 1.5,
		SecondaryOffsets:    []int{-1, 1},
		MinFillToClose:      1,
		RoundDuration:       time.Minute,
		SpinDuration:        10 * time.Millisecond,
		CountdownFrom:       0,
		DrawSource:          config.DrawInternal,
	}
}

func newTestTable(t *testing.T, typ config.MesaType) (*Table, *balance.MemoryService) {
	t.Helper()

	svc := balance.NewMemoryService()
	bc := stream.NewBroadcaster(typ.ID, testLogger())

	return NewTable(typ, testLogger(), svc, bc), svc
}

func fund(svc *balance.MemoryService, users ...int64) {
	for _, u := range users {
		svc.SetBalance(u, 1_000_000)
	}
}

func checkInvariant(t *testing.T, table *Table) {
	t.Helper()

	snap, err := table.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	occupied := 0
	for _, u := range snap.Sectors {
		if u != 0 {
			occupied++
		}
	}

	if occupied != snap.FilledCount {
		t.Fatalf("filled count invariant broken, sectors: %d, filled_count: %d", occupied, snap.FilledCount)
	}
}

func TestPlaceBetFillsSector(t *testing.T) {
	table, svc := newTestTable(t, testType())
	fund(svc, 1)

	table.OpenNext(time.Now())

	bet, err := table.PlaceBet(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bet.SectorIndex != 3 || bet.Stake != 15000 {
		t.Errorf("unexpected bet: %+v", bet)
	}

	snap, _ := table.Snapshot()

	if snap.Sectors[3] != 1 {
		t.Errorf("sector 3 occupant, want: 1, got: %d", snap.Sectors[3])
	}

	if snap.FilledCount != 1 {
		t.Errorf("filled count, want: 1, got: %d", snap.FilledCount)
	}

	if got := svc.Balance(1); got != 1_000_000-15000 {
		t.Errorf("balance after bet, want: %d, got: %d", 1_000_000-15000, got)
	}

	checkInvariant(t, table)
}

func TestPlaceBetRejections(t *testing.T) {
	table, svc := newTestTable(t, testType())
	fund(svc, 1, 2)
	svc.SetBalance(3, 100) // below the stake

	if _, err := table.PlaceBet(context.Background(), 1, 0); !errors.Is(err, ErrMesaNotFound) {
		t.Errorf("no round yet, want ErrMesaNotFound, got: %v", err)
	}

	table.OpenNext(time.Now())

	if _, err := table.PlaceBet(context.Background(), 1, -1); !errors.Is(err, ErrBadSector) {
		t.Errorf("negative sector, want ErrBadSector, got: %v", err)
	}

	if _, err := table.PlaceBet(context.Background(), 1, 15); !errors.Is(err, ErrBadSector) {
		t.Errorf("sector out of range, want ErrBadSector, got: %v", err)
	}

	if _, err := table.PlaceBet(context.Background(), 1, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := table.PlaceBet(context.Background(), 2, 5); !errors.Is(err, ErrSectorOccupied) {
		t.Errorf("taken sector, want ErrSectorOccupied, got: %v", err)
	}

	if _, err := table.PlaceBet(context.Background(), 1, 6); !errors.Is(err, ErrDuplicateBet) {
		t.Errorf("second sector same user, want ErrDuplicateBet, got: %v", err)
	}

	if _, err := table.PlaceBet(context.Background(), 3, 7); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("broke user, want ErrInsufficientBalance, got: %v", err)
	}

	snap, _ := table.Snapshot()
	if snap.Sectors[7] != 0 {
		t.Error("failed reservation left the sector held")
	}

	table.Close()

	if _, err := table.PlaceBet(context.Background(), 2, 8); !errors.Is(err, ErrMesaClosed) {
		t.Errorf("closed round, want ErrMesaClosed, got: %v", err)
	}

	checkInvariant(t, table)
}

func TestFullFillTriggersClosure(t *testing.T) {
	typ := testType()
	table, svc := newTestTable(t, typ)

	users := make([]int64, typ.SectorCount)
	for i := range users {
		users[i] = int64(i + 1)
	}
	fund(svc, users...)

	table.OpenNext(time.Now())

	for i := 0; i < typ.SectorCount; i++ {
		if _, err := table.PlaceBet(context.Background(), users[i], i); err != nil {
			t.Fatalf("bet on sector %d: %v", i, err)
		}

		checkInvariant(t, table)
	}

	phase, err := table.Phase()
	if err != nil {
		t.Fatalf("phase: %v", err)
	}

	if phase != PhaseClosing {
		t.Errorf("phase after full fill, want: closing, got: %s", phase)
	}

	select {
	case <-table.CloseSignal():
	default:
		t.Error("full fill did not signal closure")
	}
}

func TestClosureIsIdempotent(t *testing.T) {
	table, _ := newTestTable(t, testType())
	table.OpenNext(time.Now())

	if !table.Close() {
		t.Fatal("first close must transition")
	}

	if table.Close() {
		t.Error("second close must be a no-op")
	}
}

func TestPhasesOnlyAdvance(t *testing.T) {
	table, svc := newTestTable(t, testType())
	fund(svc, 1)
	table.OpenNext(time.Now())

	if _, ok := table.BeginSpin(); ok {
		t.Error("spin from open must be refused")
	}

	if table.SettleWith(&DrawResult{}, nil) {
		t.Error("settle from open must be refused")
	}

	if _, err := table.PlaceBet(context.Background(), 1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	table.Close()

	occupied, ok := table.BeginSpin()
	if !ok {
		t.Fatal("spin from closing must succeed")
	}

	if len(occupied) != 1 || occupied[0] != 0 {
		t.Errorf("occupied sectors, want: [0], got: %v", occupied)
	}

	if table.Void() {
		t.Error("void after spinning must be refused")
	}

	if !table.SettleWith(&DrawResult{WinningSector: 0, Source: SourceInternal}, nil) {
		t.Fatal("settle from spinning must succeed")
	}

	phase, _ := table.Phase()
	if phase != PhaseSettled {
		t.Errorf("terminal phase, want: settled, got: %s", phase)
	}

	if table.Close() {
		t.Error("settled round must accept no transitions")
	}
}

func TestOpenNextOnlyAfterSettled(t *testing.T) {
	table, _ := newTestTable(t, testType())

	first := table.OpenNext(time.Now())

	again := table.OpenNext(time.Now())
	if again.MesaID != first.MesaID {
		t.Fatal("an active round must not be superseded")
	}

	table.Close()
	table.Void()

	next := table.OpenNext(time.Now())
	if next.MesaID != first.MesaID+1 {
		t.Errorf("next mesa id, want: %d, got: %d", first.MesaID+1, next.MesaID)
	}

	if next.Phase != PhaseOpen || next.FilledCount != 0 {
		t.Errorf("fresh round state: %+v", next)
	}
}

func TestConcurrentBetsOnSameSector(t *testing.T) {
	typ := testType()
	table, svc := newTestTable(t, typ)

	const racers = 8

	users := make([]int64, racers)
	for i := range users {
		users[i] = int64(i + 1)
	}
	fund(svc, users...)

	table.OpenNext(time.Now())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for _, u := range users {
		u := u

		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := table.PlaceBet(context.Background(), u, 4)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrSectorOccupied):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	if succeeded != 1 {
		t.Errorf("winners of the sector race, want: 1, got: %d", succeeded)
	}

	if conflicts != racers-1 {
		t.Errorf("conflicts, want: %d, got: %d", racers-1, conflicts)
	}

	// only the winner paid
	debited := 0
	for _, u := range users {
		if svc.Balance(u) != 1_000_000 {
			debited++
		}
	}

	if debited != 1 {
		t.Errorf("debited users, want: 1, got: %d", debited)
	}

	checkInvariant(t, table)
}

// blockingBalance parks Reserve until released, to widen the window
// between the in-memory sector hold and the debit.
type blockingBalance struct {
	*balance.MemoryService
	proceed  chan struct{}
	released chan string
}

func (b *blockingBalance) Reserve(ctx context.Context, userID, amount int64, ref string) (string, error) {
	<-b.proceed
	return b.MemoryService.Reserve(ctx, userID, amount, ref)
}

func (b *blockingBalance) Release(ctx context.Context, reservationID string) error {
	err := b.MemoryService.Release(ctx, reservationID)
	b.released <- reservationID
	return err
}

func TestBetRacingClosureIsRefunded(t *testing.T) {
	typ := testType()
	svc := &blockingBalance{
		MemoryService: balance.NewMemoryService(),
		proceed:       make(chan struct{}),
		released:      make(chan string, 1),
	}
	svc.SetBalance(1, 1_000_000)

	table := NewTable(typ, testLogger(), svc, stream.NewBroadcaster(typ.ID, testLogger()))
	table.OpenNext(time.Now())

	errC := make(chan error, 1)

	go func() {
		_, err := table.PlaceBet(context.Background(), 1, 2)
		errC <- err
	}()

	// the bet is now holding sector 2 pending; close the round under it
	time.Sleep(20 * time.Millisecond)
	table.Close()
	close(svc.proceed)

	select {
	case err := <-errC:
		if !errors.Is(err, ErrMesaClosed) {
			t.Fatalf("want ErrMesaClosed, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bet never returned")
	}

	select {
	case <-svc.released:
	case <-time.After(2 * time.Second):
		t.Fatal("reservation was not released")
	}

	if got := svc.Balance(1); got != 1_000_000 {
		t.Errorf("balance after refund, want: 1000000, got: %d", got)
	}
}

func TestSubscribeSeesConsistentSequence(t *testing.T) {
	table, svc := newTestTable(t, testType())
	fund(svc, 1, 2)

	table.OpenNext(time.Now())

	if _, err := table.PlaceBet(context.Background(), 1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub := table.Subscribe()
	defer table.Unsubscribe(sub)

	ev := <-sub.C()
	if ev.Event != stream.EventSnapshot {
		t.Fatalf("first event, want: snapshot, got: %s", ev.Event)
	}

	if got := ev.Data["filled_count"].(int); got != 1 {
		t.Errorf("snapshot filled_count, want: 1, got: %d", got)
	}

	if _, err := table.PlaceBet(context.Background(), 2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev = <-sub.C()
	if ev.Event != stream.EventSectorFilled {
		t.Fatalf("second event, want: sector-filled, got: %s", ev.Event)
	}

	if got := ev.Data["filled_count"].(int); got != 2 {
		t.Errorf("event filled_count, want: 2, got: %d", got)
	}
}
