package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/auth"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/config"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/custody"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/db"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/httpserver"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/insurance"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/liquidation"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/oracle"
	"github.com/rocky2431/paimon-gold-protocol-sub000/internal/positions"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	minNotional, err := decimal.NewFromString(cfg.MinNotional)
	if err != nil {
		log.Fatal(err)
	}
	largeThreshold, err := decimal.NewFromString(cfg.LargePositionThreshold)
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	var (
		vault         custody.Vault
		bank          custody.Bank
		positionStore positions.Store
		oracleStore   oracle.StateStore
		userStore     auth.UserStore
		feed          oracle.Feed
		staticFeed    *oracle.StaticFeed
	)
	if cfg.Mode == config.ModeLive {
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		ledgerVault := custody.NewLedgerVault(pool)
		vault = ledgerVault
		bank = ledgerVault
		positionStore = positions.NewPgStore(pool)
		oracleStore = oracle.NewPgStateStore(pool)
		userStore = auth.NewPgUserStore(pool)
		feed = oracle.NewHTTPFeed(cfg.FeedURL, cfg.FeedTimeout)
	} else {
		memVault := custody.NewMemVault()
		vault = memVault
		bank = memVault
		positionStore = positions.NewMemStore()
		oracleStore = oracle.NewMemStateStore()
		userStore = auth.NewMemUserStore()
		staticFeed = oracle.NewStaticFeed()
		feed = staticFeed
	}

	bus := oracle.NewBus()
	adapter, err := oracle.NewAdapter(ctx, feed, oracleStore, bus, cfg.FeedTimeout, cfg.OracleStalenessSeconds, cfg.OracleMaxDeviationBps, cfg.OracleCircuitBreaker)
	if err != nil {
		log.Fatal(err)
	}
	fund := insurance.NewFund(vault, cfg.CollateralAsset)
	positionSvc := positions.NewService(positionStore, adapter, vault, cfg.CollateralAsset, minNotional, cfg.MinHoldSteps)
	engine := liquidation.NewEngine(positionStore, adapter, vault, fund, liquidation.Config{
		Asset:                  cfg.CollateralAsset,
		PoolAccount:            cfg.PoolAccount,
		LargePositionThreshold: largeThreshold,
	})
	authSvc := auth.NewService(userStore, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:        auth.NewHandler(authSvc),
		CustodyHandler:     custody.NewHandler(vault, bank, cfg.CollateralAsset),
		OracleHandler:      oracle.NewHandler(adapter, staticFeed),
		PositionHandler:    positions.NewHandler(positionSvc),
		LiquidationHandler: liquidation.NewHandler(engine),
		InsuranceHandler:   insurance.NewHandler(fund),
		AuthService:        authSvc,
		InternalToken:      cfg.InternalToken,
		WSHandler:          httpserver.NewWSHandler(bus, cfg.WebSocketOrigin),
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	log.Printf("mode: %s", cfg.Mode)
	log.Printf("server listening on %s", cfg.HTTPAddr)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
