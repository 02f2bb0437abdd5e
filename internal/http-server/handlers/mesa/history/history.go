package history

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/patrickmn/go-cache"
	resp "github.com/ruxplay/mesa-engine/internal/lib/api/response"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"github.com/ruxplay/mesa-engine/internal/repository"
	"golang.org/x/exp/slog"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type Response struct {
	resp.Response
	Draws []repository.DrawRow `json:"draws"`
}

type History struct {
	log     *slog.Logger
	drawRep *repository.DrawRepository
	cache   *cache.Cache
}

func NewHistory(log *slog.Logger, drawRep *repository.DrawRepository) *History {
	return &History{
		log:     log,
		drawRep: drawRep,
		cache:   cache.New(5*time.Second, time.Minute),
	}
}

func (h *History) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.mesa.history.New"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		mesaType := chi.URLParam(r, "type")

		limit := defaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				render.JSON(w, r, resp.Error("invalid limit", http.StatusBadRequest))

				return
			}

			limit = parsed
		}

		if limit > maxLimit {
			limit = maxLimit
		}

		key := fmt.Sprintf("history:%s:%d", mesaType, limit)

		if cached, found := h.cache.Get(key); found {
			render.JSON(w, r, Response{
				Response: resp.OK(),
				Draws:    cached.([]repository.DrawRow),
			})

			return
		}

		draws, err := h.drawRep.LastDraws(mesaType, limit)
		if err != nil {
			log.Error("failed to load draw history", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to load draw history", http.StatusInternalServerError))

			return
		}

		h.cache.Set(key, draws, cache.DefaultExpiration)

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Draws:    draws,
		})
	}
}
