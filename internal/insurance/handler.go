package insurance

import (
	"net/http"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/httputil"

	"github.com/shopspring/decimal"
)

type Handler struct {
	fund *Fund
}

func NewHandler(fund *Fund) *Handler {
	return &Handler{fund: fund}
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"reserve":       h.fund.Reserve(),
		"total_covered": h.fund.TotalCovered(),
		"events":        h.fund.Events(),
	})
}

type contributeRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	var req contributeRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	if err := h.fund.Contribute(r.Context(), req.From, amount); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"reserve": h.fund.Reserve().String()})
}
