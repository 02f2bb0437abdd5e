package stream

import (
	"sync"

	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"golang.org/x/exp/slog"
)

const defaultSubscriberBuffer = 64

// Sink receives every published event in addition to the in-process
// subscribers. Used for external fan-out (Pusher).
type Sink interface {
	Send(event Event) error
}

// Broadcaster fans events of one mesa type out to subscribers in publish
// order. Per-subscriber FIFO is a channel; a subscriber that cannot keep
// up is disconnected rather than skipped, so a live subscriber never sees
// a gap in the sequence.
//
// Callers serialize Publish and Subscribe through the table lock, which is
// what ties the snapshot handed to Subscribe to the event sequence.
type Broadcaster struct {
	mesaType string
	log      *slog.Logger

	mu    sync.Mutex
	seq   uint64
	subs  map[*Subscriber]struct{}
	sinks []Sink
}

type Subscriber struct {
	ch chan Event
}

func NewBroadcaster(mesaType string, log *slog.Logger, sinks ...Sink) *Broadcaster {
	return &Broadcaster{
		mesaType: mesaType,
		log:      log,
		subs:     make(map[*Subscriber]struct{}),
		sinks:    sinks,
	}
}

// Subscribe registers a new subscriber and seeds it with a snapshot event
// carrying the current sequence number.
func (b *Broadcaster) Subscribe(snapshot map[string]interface{}) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{ch: make(chan Event, defaultSubscriberBuffer)}

	sub.ch <- Event{
		MesaType: b.mesaType,
		Event:    EventSnapshot,
		Seq:      b.seq,
		Data:     snapshot,
	}

	b.subs[sub] = struct{}{}

	return sub
}

func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish assigns the next sequence number and delivers the event to every
// subscriber without blocking. A subscriber with a full buffer is dropped.
func (b *Broadcaster) Publish(event EventType, data map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++

	ev := Event{
		MesaType: b.mesaType,
		Event:    event,
		Seq:      b.seq,
		Data:     data,
	}

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			delete(b.subs, sub)
			close(sub.ch)

			b.log.Warn("dropped slow subscriber", sl.String("mesa_type", b.mesaType))
		}
	}

	for _, sink := range b.sinks {
		if err := sink.Send(ev); err != nil {
			b.log.Error("failed to send event to sink", sl.Err(err))
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// C is the subscriber's event sequence. Closed when the subscriber is
// unsubscribed or dropped.
func (s *Subscriber) C() <-chan Event {
	return s.ch
}
