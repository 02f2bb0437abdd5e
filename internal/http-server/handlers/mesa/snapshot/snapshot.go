package snapshot

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	resp "github.com/ruxplay/mesa-engine/internal/lib/api/response"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"github.com/ruxplay/mesa-engine/internal/mesa"
	"golang.org/x/exp/slog"
)

type Response struct {
	resp.Response
	Mesa mesa.Snapshot `json:"mesa"`
}

type Snapshot struct {
	log    *slog.Logger
	engine *mesa.Engine
}

func NewSnapshot(log *slog.Logger, engine *mesa.Engine) *Snapshot {
	return &Snapshot{
		log:    log,
		engine: engine,
	}
}

func (s *Snapshot) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.mesa.snapshot.New"

		log := s.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		mesaType := chi.URLParam(r, "type")

		table, err := s.engine.Table(mesaType)
		if err != nil {
			log.Info("unknown mesa type", sl.String("mesa_type", mesaType))

			render.JSON(w, r, resp.Error("unknown mesa type", http.StatusNotFound))

			return
		}

		snap, err := table.Snapshot()
		if err != nil {
			render.JSON(w, r, resp.Error("no active mesa", http.StatusNotFound))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Mesa:     snap,
		})
	}
}
