package mesa

import (
	"context"
	"time"

	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"github.com/ruxplay/mesa-engine/internal/provably"
	"golang.org/x/exp/slog"
)

// DrawRequest describes one draw. Occupied is never empty: zero-occupancy
// rounds are voided before a draw is requested.
type DrawRequest struct {
	MesaID   int64
	MesaUUID string
	Occupied []int
	Window   time.Duration
}

// DrawSource decides the winning sector for a closed round. Which source
// produced the result is recorded on the DrawResult for audit.
type DrawSource interface {
	Draw(ctx context.Context, req DrawRequest) DrawResult
}

// InternalSource picks uniformly over the occupied sectors using the
// provably-fair randomizer; the seeds travel with the result.
type InternalSource struct {
	fair *provably.Fair
}

func NewInternalSource(fair *provably.Fair) *InternalSource {
	return &InternalSource{fair: fair}
}

func (s *InternalSource) Draw(_ context.Context, req DrawRequest) DrawResult {
	d := s.fair.Next(req.MesaUUID, len(req.Occupied))

	return DrawResult{
		MesaID:        req.MesaID,
		WinningSector: req.Occupied[d.Result],
		DrawnAt:       time.Now(),
		Source:        SourceInternal,
		ClientSeed:    d.ClientSeed,
		ServerSeed:    d.ServerSeed,
		Hash:          d.Hash,
		Nonce:         d.Nonce,
	}
}

// ExternalSource waits for a physically produced sector for the length of
// the spin window, then falls back to the internal randomizer so a missing
// signal can never wedge the round.
type ExternalSource struct {
	log      *slog.Logger
	fallback *InternalSource
	resultC  chan int
}

func NewExternalSource(fallback *InternalSource, log *slog.Logger) *ExternalSource {
	return &ExternalSource{
		log:      log,
		fallback: fallback,
		resultC:  make(chan int),
	}
}

// Submit hands an externally produced sector to a waiting draw. Fails when
// no draw is pending; phase validation happens before this is called.
func (s *ExternalSource) Submit(sector int) error {
	select {
	case s.resultC <- sector:
		return nil
	default:
		return ErrNoDrawPending
	}
}

func (s *ExternalSource) Draw(ctx context.Context, req DrawRequest) DrawResult {
	timer := time.NewTimer(req.Window)
	defer timer.Stop()

	select {
	case sector := <-s.resultC:
		return DrawResult{
			MesaID:        req.MesaID,
			WinningSector: sector,
			DrawnAt:       time.Now(),
			Source:        SourceExternal,
		}
	case <-timer.C:
		s.log.Warn("no external result within spin window, falling back to internal draw",
			sl.Int64("mesa_id", req.MesaID))

		return s.fallback.Draw(ctx, req)
	case <-ctx.Done():
		return s.fallback.Draw(context.Background(), req)
	}
}
