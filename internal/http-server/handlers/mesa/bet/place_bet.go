package place_bet

import (
	"errors"
	"net/http"
	"strconv"

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

type Response struct {
	resp.Response
	MesaID      int64 `json:"mesa_id,omitempty"`
	SectorIndex int   `json:"sector_index"`
	Stake       int64 `json:"stake,omitempty"`
}

// userHeader carries the upstream-authenticated user. The engine performs
// no credential checks of its own.
const userHeader = "X-User-Id"

type Bet struct {
	log       *slog.Logger
	validator *validator.Validate
	engine    *mesa.Engine
}

func NewBet(log *slog.Logger, engine *mesa.Engine) *Bet {
	return &Bet{
		log:       log,
		validator: validator.New(),
		engine:    engine,
	}
}

func (b *Bet) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.mesa.bet.New"

		log := b.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, err := strconv.ParseInt(r.Header.Get(userHeader), 10, 64)
		if err != nil || userID <= 0 {
			log.Info("request without authenticated user")

			render.JSON(w, r, resp.Error("missing authenticated user", http.StatusUnauthorized))

			return
		}

		var req Request

		if err = render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		log.Info("request body decoded", slog.Any("request", req))

		if err = b.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		mesaType := chi.URLParam(r, "type")

		table, err := b.engine.Table(mesaType)
		if err != nil {
			log.Info("unknown mesa type", sl.String("mesa_type", mesaType))

			render.JSON(w, r, resp.Error("unknown mesa type", http.StatusNotFound))

			return
		}

		bet, err := table.PlaceBet(r.Context(), userID, req.SectorIndex)
		if err != nil {
			status, msg := mapBetError(err)

			log.Info("bet rejected",
				sl.Int64("user_id", userID),
				sl.Int("sector_index", req.SectorIndex),
				sl.Err(err))

			render.JSON(w, r, resp.Error(msg, status))

			return
		}

		log.Info("bet accepted",
			sl.Int64("user_id", userID),
			sl.Int64("mesa_id", bet.MesaID),
			sl.Int("sector_index", bet.SectorIndex))

		render.JSON(w, r, Response{
			Response:    resp.OK(),
			MesaID:      bet.MesaID,
			SectorIndex: bet.SectorIndex,
			Stake:       bet.Stake,
		})
	}
}

func mapBetError(err error) (int, string) {
	switch {
	case errors.Is(err, mesa.ErrBadSector):
		return http.StatusBadRequest, "sector index out of range"
	case errors.Is(err, mesa.ErrMesaNotFound):
		return http.StatusNotFound, "no active mesa"
	case errors.Is(err, mesa.ErrMesaClosed):
		return http.StatusConflict, "mesa is not accepting bets"
	case errors.Is(err, mesa.ErrSectorOccupied):
		return http.StatusConflict, "sector already occupied"
	case errors.Is(err, mesa.ErrDuplicateBet):
		return http.StatusConflict, "user already holds a sector in this mesa"
	case errors.Is(err, mesa.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient balance"
	default:
		return http.StatusInternalServerError, "failed to place bet"
	}
}
