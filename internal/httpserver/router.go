package httpserver

import (
	"net/http"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/auth"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/custody"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/insurance"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/liquidation"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/oracle"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/positions"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	AuthHandler        *auth.Handler
	CustodyHandler     *custody.Handler
	OracleHandler      *oracle.Handler
	PositionHandler    *positions.Handler
	LiquidationHandler *liquidation.Handler
	InsuranceHandler   *insurance.Handler
	AuthService        *auth.Service
	InternalToken      string
	WSHandler          http.Handler
}

// byID peels the {id} route param off an owner-scoped position handler.
func byID(h func(http.ResponseWriter, *http.Request, string, string)) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, owner string) {
		h(w, r, owner, chi.URLParam(r, "id"))
	}
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})
		r.Get("/ws", d.WSHandler.ServeHTTP)
		r.Get("/oracle/state", d.OracleHandler.GetState)

		// Liquidation is permissionless: any caller may report an
		// unhealthy position and collect the bonus.
		r.Post("/liquidations", d.LiquidationHandler.Liquidate)
		r.Get("/liquidations/eligible", d.LiquidationHandler.Eligible)
		r.Get("/insurance", d.InsuranceHandler.GetState)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))
			r.Get("/me", OwnerFunc(d.AuthHandler.Me))
			r.Get("/balance", OwnerFunc(d.CustodyHandler.Balance))
			r.Post("/positions", OwnerFunc(d.PositionHandler.Open))
			r.Get("/positions", OwnerFunc(d.PositionHandler.List))
			r.Get("/positions/{id}", OwnerFunc(byID(d.PositionHandler.Get)))
			r.Get("/positions/{id}/value", OwnerFunc(byID(d.PositionHandler.Value)))
			r.Post("/positions/{id}/close", OwnerFunc(byID(d.PositionHandler.Close)))
			r.Post("/positions/{id}/margin", OwnerFunc(byID(d.PositionHandler.Margin)))
		})

		r.Group(func(r chi.Router) {
			r.Use(InternalAuth(d.InternalToken))
			r.Post("/internal/deposits", d.CustodyHandler.Deposit)
			r.Post("/internal/withdrawals", d.CustodyHandler.Withdraw)
			r.Post("/internal/insurance/contributions", d.InsuranceHandler.Contribute)
			r.Post("/internal/oracle/thresholds", d.OracleHandler.UpdateThresholds)
			r.Post("/internal/oracle/pause", d.OracleHandler.Pause)
			r.Post("/internal/oracle/unpause", d.OracleHandler.Unpause)
			r.Post("/internal/oracle/feed-round", d.OracleHandler.SetFeedRound)
		})
	})
	return r
}
