package provably

import "testing"

func TestComputeStaysInRange(t *testing.T) {
	for max := 1; max <= 15; max++ {
		for nonce := 0; nonce < 50; nonce++ {
			d := compute("server-seed", "client-seed", nonce, max)

			if d.Result < 0 || d.Result >= max {
				t.Fatalf("result out of range, max: %d, nonce: %d, got: %d", max, nonce, d.Result)
			}
		}
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	a := compute("server-seed", "client-seed", 7, 15)
	b := compute("server-seed", "client-seed", 7, 15)

	if a.Result != b.Result || a.Hash != b.Hash {
		t.Errorf("same inputs produced different draws: %+v vs %+v", a, b)
	}

	c := compute("server-seed", "client-seed", 8, 15)

	if c.Hash == a.Hash {
		t.Error("different nonce produced identical hash")
	}
}

func TestNextRecordsAuditFields(t *testing.T) {
	f := New()

	d := f.Next("client-seed", 15)

	if d.ServerSeed == "" || d.Hash == "" {
		t.Error("draw is missing audit fields")
	}

	if d.Max != 15 {
		t.Errorf("max, want: 15, got: %d", d.Max)
	}

	if got := f.Next("client-seed", 15).Nonce; got != d.Nonce+1 {
		t.Errorf("nonce must increase, want: %d, got: %d", d.Nonce+1, got)
	}
}
