package spin

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	resp "github.com/ruxplay/mesa-engine/internal/lib/api/response"
	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"github.com/ruxplay/mesa-engine/internal/mesa"
	"golang.org/x/exp/slog"
)

type Request struct {
	SectorIndex int `json:"sector_index" validate:"gte=0"`
}

// Result accepts the physically produced winning sector. Only callers
// holding the shared spin-source token may submit, and only while the
// target mesa is spinning with an external draw source.
type Result struct {
	log       *slog.Logger
	validator *validator.Validate
	engine    *mesa.Engine
	token     string
}

func NewResult(log *slog.Logger, engine *mesa.Engine, token string) *Result {
	return &Result{
		log:       log,
		validator: validator.New(),
		engine:    engine,
		token:     token,
	}
}

func (s *Result) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.mesa.spin.New"

		log := s.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if !s.authorized(r) {
			log.Warn("spin result with bad token", sl.String("remote_addr", r.RemoteAddr))

			render.JSON(w, r, resp.Error("unauthorized", http.StatusUnauthorized))

			return
		}

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		if err := s.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		mesaType := chi.URLParam(r, "type")

		if err := s.engine.SubmitSpinResult(mesaType, req.SectorIndex); err != nil {
			status, msg := mapSpinError(err)

			log.Info("spin result rejected",
				sl.String("mesa_type", mesaType),
				sl.Int("sector_index", req.SectorIndex),
				sl.Err(err))

			render.JSON(w, r, resp.Error(msg, status))

			return
		}

		log.Info("spin result accepted",
			sl.String("mesa_type", mesaType),
			sl.Int("sector_index", req.SectorIndex))

		render.JSON(w, r, resp.OK())
	}
}

func (s *Result) authorized(r *http.Request) bool {
	if s.token == "" {
		return false
	}

	header := r.Header.Get("Authorization")

	got, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

func mapSpinError(err error) (int, string) {
	switch {
	case errors.Is(err, mesa.ErrUnknownMesaType):
		return http.StatusNotFound, "unknown mesa type"
	case errors.Is(err, mesa.ErrMesaNotFound):
		return http.StatusNotFound, "no active mesa"
	case errors.Is(err, mesa.ErrBadSector):
		return http.StatusBadRequest, "sector index out of range"
	case errors.Is(err, mesa.ErrExternalDrawDisabled):
		return http.StatusConflict, "mesa type does not use an external draw source"
	case errors.Is(err, mesa.ErrNoDrawPending):
		return http.StatusConflict, "no draw is waiting for a result"
	default:
		return http.StatusInternalServerError, "failed to submit spin result"
	}
}
