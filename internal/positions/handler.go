package positions

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/custody"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/httputil"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/oracle"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/types"

	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type openRequest struct {
	Collateral string `json:"collateral"`
	Leverage   int64  `json:"leverage"`
	Direction  string `json:"direction"`
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request, owner string) {
	var req openRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	collateral, err := decimal.NewFromString(req.Collateral)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid collateral"})
		return
	}
	direction := types.Direction(strings.ToLower(strings.TrimSpace(req.Direction)))
	p, err := h.svc.Open(r.Context(), owner, collateral, req.Leverage, direction)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, owner string) {
	items, err := h.svc.ListByOwner(r.Context(), owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, owner, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid id"})
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if p.Owner != owner {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: ErrNotFound.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

type closeRequest struct {
	Fraction string `json:"fraction"`
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request, owner, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid id"})
		return
	}
	var req closeRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	fraction := decimal.NewFromInt(1)
	if req.Fraction != "" {
		fraction, err = decimal.NewFromString(req.Fraction)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid fraction"})
			return
		}
	}
	payout, err := h.svc.Close(r.Context(), owner, id, fraction)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"payout": payout.String()})
}

type marginRequest struct {
	Action string `json:"action"`
	Amount string `json:"amount"`
}

func (h *Handler) Margin(w http.ResponseWriter, r *http.Request, owner, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid id"})
		return
	}
	var req marginRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	var p any
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "add":
		p, err = h.svc.AddMargin(r.Context(), owner, id, amount)
	case "remove":
		p, err = h.svc.RemoveMargin(r.Context(), owner, id, amount)
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "action must be add or remove"})
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Value(w http.ResponseWriter, r *http.Request, owner, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid id"})
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if p.Owner != owner {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: ErrNotFound.Error()})
		return
	}
	v, err := h.svc.Value(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, ErrPositionTooNew), errors.Is(err, ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, oracle.ErrPaused), errors.Is(err, oracle.ErrStalePrice), errors.Is(err, oracle.ErrExcessiveDeviation), errors.Is(err, oracle.ErrInvalidPrice):
		status = http.StatusServiceUnavailable
	case errors.Is(err, custody.ErrInsufficientBalance):
		status = http.StatusBadRequest
	}
	httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: err.Error()})
}
