package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	resp "github.com/ruxplay/mesa-engine/internal/lib/api/response"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"github.com/ruxplay/mesa-engine/internal/mesa"
	"golang.org/x/exp/slog"
)

// Stream serves the mesa event sequence over server-sent events. The
// first frame is always a snapshot of the live round, so a client joining
// mid-round renders correct state immediately.
type Stream struct {
	log    *slog.Logger
	engine *mesa.Engine
}

func NewStream(log *slog.Logger, engine *mesa.Engine) *Stream {
	return &Stream{
		log:    log,
		engine: engine,
	}
}

func (s *Stream) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.mesa.sse.New"

		log := s.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		mesaType := chi.URLParam(r, "type")

		table, err := s.engine.Table(mesaType)
		if err != nil {
			render.JSON(w, r, resp.Error("unknown mesa type", http.StatusNotFound))

			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			render.JSON(w, r, resp.Error("streaming unsupported", http.StatusInternalServerError))

			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		sub := table.Subscribe()
		defer table.Unsubscribe(sub)

		log.Info("stream subscriber connected", sl.String("mesa_type", mesaType))

		for {
			select {
			case ev, open := <-sub.C():
				if !open {
					// dropped as a slow consumer; client reconnects for a fresh snapshot
					return
				}

				data, err := json.Marshal(ev)
				if err != nil {
					log.Error("failed to marshal event", sl.Err(err))

					continue
				}

				if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, data); err != nil {
					return
				}

				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}
