package liquidation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/httputil"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/insurance"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/oracle"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/positions"

	"github.com/shopspring/decimal"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type liquidateRequest struct {
	PositionID int64  `json:"position_id"`
	Keeper     string `json:"keeper"`
	Percentage string `json:"percentage"`
}

func (h *Handler) Liquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	percentage := decimal.NewFromInt(100)
	if req.Percentage != "" {
		var err error
		percentage, err = decimal.NewFromString(req.Percentage)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid percentage"})
			return
		}
	}
	out, err := h.engine.Liquidate(r.Context(), req.Keeper, req.PositionID, percentage)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, positions.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ErrNotEligible):
			status = http.StatusConflict
		case errors.Is(err, insurance.ErrInsufficientReserve):
			status = http.StatusBadGateway
		case errors.Is(err, oracle.ErrPaused), errors.Is(err, oracle.ErrStalePrice), errors.Is(err, oracle.ErrExcessiveDeviation), errors.Is(err, oracle.ErrInvalidPrice):
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Eligible(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}
	items, err := h.engine.FindEligible(r.Context(), limit)
	if err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
