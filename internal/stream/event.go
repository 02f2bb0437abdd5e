package stream

type EventType string

const (
	EventSnapshot     EventType = "snapshot"
	EventMesaOpened   EventType = "mesa-opened"
	EventSectorFilled EventType = "sector-filled"
	EventCountdown    EventType = "countdown"
	EventClosing      EventType = "closing"
	EventSpinning     EventType = "spinning"
	EventResult       EventType = "result"
)

// Event is one entry of a mesa's ordered event sequence. Seq is monotonic
// per mesa type; a subscriber never observes a gap between its snapshot
// and the events that follow it.
type Event struct {
	MesaType string                 `json:"mesa_type"`
	Event    EventType              `json:"event"`
	Seq      uint64                 `json:"seq"`
	Data     map[string]interface{} `json:"data"`
}
