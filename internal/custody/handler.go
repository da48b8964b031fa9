package custody

import (
	"context"
	"errors"
	"net/http"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/httputil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handler struct {
	vault Vault
	bank  Bank
	asset string
}

func NewHandler(vault Vault, bank Bank, asset string) *Handler {
	return &Handler{vault: vault, bank: bank, asset: asset}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request, owner string) {
	balance, err := h.vault.Balance(r.Context(), owner, h.asset)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"asset": h.asset, "balance": balance.String()})
}

type fundingRequest struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
	Ref    string `json:"ref,omitempty"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.funding(w, r, h.bank.Deposit)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.funding(w, r, h.bank.Withdraw)
}

type fundingFn func(ctx context.Context, owner, asset string, amount decimal.Decimal, ref string) error

func (h *Handler) funding(w http.ResponseWriter, r *http.Request, move fundingFn) {
	var req fundingRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if req.Owner == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "owner required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	ref := req.Ref
	if ref == "" {
		ref = uuid.NewString()
	}
	if err := move(r.Context(), req.Owner, h.asset, amount, ref); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrInsufficientBalance) {
			status = http.StatusBadRequest
		}
		httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	balance, err := h.vault.Balance(r.Context(), req.Owner, h.asset)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"owner": req.Owner, "asset": h.asset, "balance": balance.String(), "ref": ref})
}
