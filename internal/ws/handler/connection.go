package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"github.com/ruxplay/mesa-engine/internal/mesa"
	"golang.org/x/exp/slog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub serves the mesa event sequence over websocket for clients that
// cannot hold an SSE connection. One subscription per connection, scoped
// to the mesa type from the query string.
type Hub struct {
	log    *slog.Logger
	engine *mesa.Engine
}

func NewHub(log *slog.Logger, engine *mesa.Engine) *Hub {
	return &Hub{
		log:    log,
		engine: engine,
	}
}

func (hub *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	mesaType := r.URL.Query().Get("mesa")

	table, err := hub.engine.Table(mesaType)
	if err != nil {
		http.Error(w, "unknown mesa type", http.StatusNotFound)

		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Error("failed to upgrade connection", sl.Err(err))

		return
	}

	sub := table.Subscribe()

	hub.log.Info("ws subscriber connected", sl.String("mesa_type", mesaType))

	done := make(chan struct{})

	go func() {
		defer close(done)

		for ev := range sub.C() {
			if err := ws.WriteJSON(ev); err != nil {
				hub.log.Error("failed to write message", sl.Err(err))

				return
			}
		}
	}()

	// drain the client side only to notice the disconnect
	for {
		if _, _, err = ws.ReadMessage(); err != nil {
			break
		}
	}

	table.Unsubscribe(sub)
	<-done

	if err = ws.Close(); err != nil {
		hub.log.Error("failed to close connection", sl.Err(err))
	}
}
