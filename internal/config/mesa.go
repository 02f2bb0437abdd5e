package config

import "time"

type DrawSourceKind string

const (
	DrawInternal DrawSourceKind = "internal"
	DrawExternal DrawSourceKind = "external"
)

// MesaType is the immutable layout of one table type. Loaded once at
// startup, never mutated afterwards.
type MesaType struct {
	ID                  string         `yaml:"id"`
	SectorCount         int            `yaml:"sector_count"`
	StakePerSector      int64          `yaml:"stake_per_sector"` // cents
	MainMultiplier      float64        `yaml:"main_multiplier"`
	SecondaryMultiplier float64        `yaml:"secondary_multiplier"`
	SecondaryOffsets    []int          `yaml:"secondary_offsets"`
	MinFillToClose      int            `yaml:"min_fill_to_close"`
	RoundDuration       time.Duration  `yaml:"round_duration"`
	SpinDuration        time.Duration  `yaml:"spin_duration"`
	CountdownFrom       int            `yaml:"countdown_from"` // seconds
	DrawSource          DrawSourceKind `yaml:"draw_source"`
}

func DefaultMesaTypes() []MesaType {
	return []MesaType{
		{
			ID:                  "150",
			SectorCount:         15,
			StakePerSector:      15000,
			MainMultiplier:      10.5,
			SecondaryMultiplier: 1.5,
			SecondaryOffsets:    []int{-1, 1},
			MinFillToClose:      1,
			RoundDuration:       60 * time.Second,
			SpinDuration:        12 * time.Second,
			CountdownFrom:       10,
			DrawSource:          DrawInternal,
		},
		{
			ID:                  "300",
			SectorCount:         15,
			StakePerSector:      30000,
			MainMultiplier:      10.5,
			SecondaryMultiplier: 1.5,
			SecondaryOffsets:    []int{-1, 1},
			MinFillToClose:      1,
			RoundDuration:       60 * time.Second,
			SpinDuration:        12 * time.Second,
			CountdownFrom:       10,
			DrawSource:          DrawInternal,
		},
	}
}
