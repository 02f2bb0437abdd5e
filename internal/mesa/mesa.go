package mesa

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseOpen     Phase = "open"
	PhaseClosing  Phase = "closing"
	PhaseSpinning Phase = "spinning"
	PhaseSettled  Phase = "settled"
)

var phaseRank = map[Phase]int{
	PhaseOpen:     0,
	PhaseClosing:  1,
	PhaseSpinning: 2,
	PhaseSettled:  3,
}

// Before reports whether p comes strictly earlier than next in the round
// lifecycle. Phases only ever advance.
func (p Phase) Before(next Phase) bool {
	return phaseRank[p] < phaseRank[next]
}

var (
	ErrMesaNotFound         = errors.New("mesa not found")
	ErrMesaClosed           = errors.New("mesa is not accepting bets")
	ErrSectorOccupied       = errors.New("sector already occupied")
	ErrDuplicateBet         = errors.New("user already holds a sector in this mesa")
	ErrBadSector            = errors.New("sector index out of range")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrNoDrawPending        = errors.New("no draw is waiting for an external result")
	ErrExternalDrawDisabled = errors.New("mesa type does not use an external draw source")
	ErrUnknownMesaType      = errors.New("unknown mesa type")
)

// Sector holds at most one occupant. The pending flag marks a sector that
// is reserved in memory while the balance debit is in flight; it is not an
// occupant yet and does not count towards FilledCount.
type Sector struct {
	UserID  int64
	pending bool
}

func (s Sector) Occupied() bool {
	return s.UserID != 0 && !s.pending
}

func (s Sector) taken() bool {
	return s.UserID != 0
}

// Mesa is one betting round. Owned exclusively by its type's Table; all
// access goes through the table's lock.
type Mesa struct {
	ID          int64
	UUID        uuid.UUID
	TypeID      string
	Phase       Phase
	Sectors     []Sector
	FilledCount int
	OpenedAt    time.Time
	ClosesAt    time.Time
}

// Bet is immutable once accepted.
type Bet struct {
	UserID        int64     `json:"user_id"`
	MesaID        int64     `json:"mesa_id"`
	SectorIndex   int       `json:"sector_index"`
	Stake         int64     `json:"stake"`
	PlacedAt      time.Time `json:"placed_at"`
	ReservationID string    `json:"-"`
}

// DrawResult is created exactly once per non-void round. Seed fields are
// populated for internal draws; Source records which mechanism decided the
// winning sector.
type DrawResult struct {
	MesaID         int64     `json:"mesa_id"`
	WinningSector  int       `json:"winning_sector"`
	SecondaryLeft  int       `json:"secondary_left"`
	SecondaryRight int       `json:"secondary_right"`
	DrawnAt        time.Time `json:"drawn_at"`
	Source         string    `json:"source"`
	ClientSeed     string    `json:"client_seed,omitempty"`
	ServerSeed     string    `json:"server_seed,omitempty"`
	Hash           string    `json:"hash,omitempty"`
	Nonce          int       `json:"nonce,omitempty"`
}

const (
	SourceInternal = "internal"
	SourceExternal = "external"
)

// Snapshot is a consistent read-only view of a mesa, shaped for clients.
// Sectors holds the occupant user id per index, zero for empty.
type Snapshot struct {
	MesaID      int64     `json:"mesa_id"`
	UUID        string    `json:"uuid"`
	MesaType    string    `json:"mesa_type"`
	Phase       Phase     `json:"phase"`
	Sectors     []int64   `json:"sectors"`
	FilledCount int       `json:"filled_count"`
	ClosesAt    time.Time `json:"closes_at"`
}

// RoundRecord is what gets archived after a round settles. Persistence is
// fire-and-forget; losing a record never blocks gameplay.
type RoundRecord struct {
	Snapshot Snapshot
	Bets     []Bet
	Result   *DrawResult
	Voided   bool
}

type HistorySink interface {
	SaveRound(rec RoundRecord)
}
