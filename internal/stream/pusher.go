package stream

import (
	"github.com/pusher/pusher-http-go/v5"
	"github.com/ruxplay/mesa-engine/internal/config"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"golang.org/x/exp/slog"
)

// PusherSink mirrors mesa events to a Pusher channel named after the mesa
// type. Sends are queued and flushed by a single goroutine so a slow
// Pusher call never blocks a publish, while per-channel order is kept.
type PusherSink struct {
	client pusher.Client
	log    *slog.Logger
	queue  chan Event
}

func NewPusherSink(cfg config.Pusher, log *slog.Logger) *PusherSink {
	sink := &PusherSink{
		client: pusher.Client{
			AppID:   cfg.AppID,
			Key:     cfg.Key,
			Secret:  cfg.Secret,
			Cluster: cfg.Cluster,
		},
		log:   log,
		queue: make(chan Event, 256),
	}

	go sink.run()

	return sink
}

func (p *PusherSink) run() {
	for ev := range p.queue {
		channel := "mesa-" + ev.MesaType

		if err := p.client.Trigger(channel, string(ev.Event), ev); err != nil {
			p.log.Error("failed to trigger pusher event",
				sl.String("channel", channel),
				sl.String("event", string(ev.Event)),
				sl.Err(err))
		}
	}
}

func (p *PusherSink) Send(event Event) error {
	select {
	case p.queue <- event:
		return nil
	default:
		p.log.Warn("pusher queue full, event dropped",
			sl.String("event", string(event.Event)))

		return nil
	}
}
