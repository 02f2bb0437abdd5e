package mesa

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ruxplay/mesa-engine/internal/provably"
)

func TestInternalSourceDrawsOccupiedOnly(t *testing.T) {
	source := NewInternalSource(provably.New())

	occupied := []int{2, 5, 11}

	for i := 0; i < 100; i++ {
		res := source.Draw(context.Background(), DrawRequest{
			MesaID:   1,
			MesaUUID: "round-uuid",
			Occupied: occupied,
			Window:   time.Second,
		})

		found := false
		for _, s := range occupied {
			if res.WinningSector == s {
				found = true
			}
		}

		if !found {
			t.Fatalf("winning sector %d is not occupied", res.WinningSector)
		}

		if res.Source != SourceInternal {
			t.Fatalf("source, want: internal, got: %s", res.Source)
		}

		if res.ServerSeed == "" || res.Hash == "" {
			t.Fatal("internal draw must record its seeds")
		}
	}
}

func TestExternalSourceUsesSubmittedResult(t *testing.T) {
	source := NewExternalSource(NewInternalSource(provably.New()), testLogger())

	go func() {
		// wait for the draw to be pending
		for source.Submit(7) != nil {
			time.Sleep(time.Millisecond)
		}
	}()

	res := source.Draw(context.Background(), DrawRequest{
		MesaID:   1,
		MesaUUID: "round-uuid",
		Occupied: []int{0, 7},
		Window:   2 * time.Second,
	})

	if res.WinningSector != 7 {
		t.Errorf("winning sector, want: 7, got: %d", res.WinningSector)
	}

	if res.Source != SourceExternal {
		t.Errorf("source, want: external, got: %s", res.Source)
	}
}

func TestExternalSourceFallsBackOnTimeout(t *testing.T) {
	source := NewExternalSource(NewInternalSource(provably.New()), testLogger())

	res := source.Draw(context.Background(), DrawRequest{
		MesaID:   1,
		MesaUUID: "round-uuid",
		Occupied: []int{3},
		Window:   10 * time.Millisecond,
	})

	if res.Source != SourceInternal {
		t.Errorf("source after timeout, want: internal, got: %s", res.Source)
	}

	if res.WinningSector != 3 {
		t.Errorf("winning sector, want: 3, got: %d", res.WinningSector)
	}
}

func TestExternalSubmitWithoutPendingDraw(t *testing.T) {
	source := NewExternalSource(NewInternalSource(provably.New()), testLogger())

	if err := source.Submit(4); !errors.Is(err, ErrNoDrawPending) {
		t.Errorf("want ErrNoDrawPending, got: %v", err)
	}
}

func TestComputePayouts(t *testing.T) {
	typ := testType()

	bets := []Bet{
		{UserID: 1, MesaID: 1, SectorIndex: 0, Stake: 15000},
		{UserID: 2, MesaID: 1, SectorIndex: 1, Stake: 15000},
		{UserID: 3, MesaID: 1, SectorIndex: 14, Stake: 15000},
		{UserID: 4, MesaID: 1, SectorIndex: 7, Stake: 15000},
	}

	res := &DrawResult{MesaID: 1, WinningSector: 0, Source: SourceInternal}

	payouts := ComputePayouts(typ, bets, res)

	if len(payouts) != 3 {
		t.Fatalf("payouts, want: 3, got: %d", len(payouts))
	}

	byUser := make(map[int64]Payout)
	for _, p := range payouts {
		byUser[p.UserID] = p
	}

	if p := byUser[1]; p.Kind != PayoutMain || p.Amount != 157500 {
		t.Errorf("main payout, want: 157500 main, got: %d %s", p.Amount, p.Kind)
	}

	// adjacency wraps around the wheel
	if res.SecondaryLeft != 14 || res.SecondaryRight != 1 {
		t.Errorf("secondary sectors, want: 14/1, got: %d/%d", res.SecondaryLeft, res.SecondaryRight)
	}

	if p := byUser[3]; p.Kind != PayoutSecondary || p.Amount != 22500 {
		t.Errorf("left secondary payout, want: 22500 secondary, got: %d %s", p.Amount, p.Kind)
	}

	if p := byUser[2]; p.Kind != PayoutSecondary || p.Amount != 22500 {
		t.Errorf("right secondary payout, want: 22500 secondary, got: %d %s", p.Amount, p.Kind)
	}

	if _, ok := byUser[4]; ok {
		t.Error("non-adjacent occupant must not be paid")
	}
}

func TestComputePayoutsUnoccupiedWinner(t *testing.T) {
	typ := testType()

	// external wheel may land on an empty sector; nobody takes the main prize
	bets := []Bet{
		{UserID: 2, MesaID: 1, SectorIndex: 6, Stake: 15000},
	}

	res := &DrawResult{MesaID: 1, WinningSector: 5, Source: SourceExternal}

	payouts := ComputePayouts(typ, bets, res)

	if len(payouts) != 1 {
		t.Fatalf("payouts, want: 1, got: %d", len(payouts))
	}

	if payouts[0].UserID != 2 || payouts[0].Kind != PayoutSecondary {
		t.Errorf("unexpected payout: %+v", payouts[0])
	}
}
