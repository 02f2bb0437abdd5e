package mesa

import (
	"context"
)

// Engine aggregates the tables and schedulers of all configured mesa
// types and routes externally submitted spin results to the right draw.
type Engine struct {
	tables     map[string]*Table
	schedulers map[string]*Scheduler
	external   map[string]*ExternalSource
}

func NewEngine() *Engine {
	return &Engine{
		tables:     make(map[string]*Table),
		schedulers: make(map[string]*Scheduler),
		external:   make(map[string]*ExternalSource),
	}
}

// Register adds a mesa type. external may be nil for internally drawn
// types.
func (e *Engine) Register(table *Table, scheduler *Scheduler, external *ExternalSource) {
	id := table.Type().ID

	e.tables[id] = table
	e.schedulers[id] = scheduler

	if external != nil {
		e.external[id] = external
	}
}

func (e *Engine) Table(typeID string) (*Table, error) {
	table, ok := e.tables[typeID]
	if !ok {
		return nil, ErrUnknownMesaType
	}

	return table, nil
}

// Start launches one scheduler goroutine per mesa type.
func (e *Engine) Start(ctx context.Context) {
	for _, scheduler := range e.schedulers {
		go scheduler.Run(ctx)
	}
}

// SubmitSpinResult feeds a physically produced winning sector into the
// pending draw of the given type. Only valid while that mesa is spinning
// and the type is configured for an external draw source.
func (e *Engine) SubmitSpinResult(typeID string, sector int) error {
	table, err := e.Table(typeID)
	if err != nil {
		return err
	}

	external, ok := e.external[typeID]
	if !ok {
		return ErrExternalDrawDisabled
	}

	if sector < 0 || sector >= table.Type().SectorCount {
		return ErrBadSector
	}

	phase, err := table.Phase()
	if err != nil {
		return err
	}

	if phase != PhaseSpinning {
		return ErrNoDrawPending
	}

	return external.Submit(sector)
}
