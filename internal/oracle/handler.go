package oracle

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/httputil"

	"github.com/shopspring/decimal"
)

type Handler struct {
	adapter    *Adapter
	staticFeed *StaticFeed
}

// NewHandler wires the admin surface. staticFeed is nil in live mode;
// when set, the feed round can be driven over the internal API.
func NewHandler(adapter *Adapter, staticFeed *StaticFeed) *Handler {
	return &Handler{adapter: adapter, staticFeed: staticFeed}
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.adapter.State())
}

type thresholdsRequest struct {
	StalenessSeconds int64 `json:"staleness_seconds"`
	MaxDeviationBps  int64 `json:"max_deviation_bps"`
	CircuitBreaker   bool  `json:"circuit_breaker"`
}

func (h *Handler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var req thresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid body"})
		return
	}
	if err := h.adapter.SetThresholds(r.Context(), req.StalenessSeconds, req.MaxDeviationBps, req.CircuitBreaker); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.adapter.State())
}

func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	if err := h.adapter.Pause(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.adapter.State())
}

func (h *Handler) Unpause(w http.ResponseWriter, r *http.Request) {
	if err := h.adapter.Unpause(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.adapter.State())
}

type feedRoundRequest struct {
	Price     string `json:"price"`
	RoundID   int64  `json:"round_id"`
	UpdatedAt *int64 `json:"updated_at,omitempty"`
}

// SetFeedRound drives the paper-mode feed. Live mode returns 404.
func (h *Handler) SetFeedRound(w http.ResponseWriter, r *http.Request) {
	if h.staticFeed == nil {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "feed is not operator controlled"})
		return
	}
	var req feedRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid body"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid price"})
		return
	}
	updatedAt := time.Now().UTC()
	if req.UpdatedAt != nil {
		updatedAt = time.Unix(*req.UpdatedAt, 0).UTC()
	}
	h.staticFeed.SetRound(Round{Answer: price, Decimals: 0, RoundID: req.RoundID, UpdatedAt: updatedAt})
	w.WriteHeader(http.StatusNoContent)
}
