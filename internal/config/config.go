package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModeLive  = "live"
	ModePaper = "paper"
)

type Config struct {
	HTTPAddr        string
	Mode            string
	DBDSN           string
	JWTIssuer       string
	JWTSecret       string
	JWTTTL          time.Duration
	InternalToken   string
	WebSocketOrigin string

	FeedURL     string
	FeedTimeout time.Duration

	OracleStalenessSeconds int64
	OracleMaxDeviationBps  int64
	OracleCircuitBreaker   bool

	CollateralAsset        string
	PoolAccount            string
	MinNotional            string
	MinHoldSteps           int64
	LargePositionThreshold string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.Mode = strings.ToLower(strings.TrimSpace(os.Getenv("APP_MODE")))
	if c.Mode == "" {
		c.Mode = ModePaper
	}
	if c.Mode != ModeLive && c.Mode != ModePaper {
		return c, errors.New("invalid APP_MODE: use live or paper")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.Mode == ModeLive && c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}
	c.FeedURL = os.Getenv("FEED_URL")
	if c.Mode == ModeLive && c.FeedURL == "" {
		missing = append(missing, "FEED_URL")
	}
	var err error
	c.FeedTimeout, err = durationEnv("FEED_TIMEOUT", 5*time.Second)
	if err != nil {
		return c, err
	}
	c.OracleStalenessSeconds, err = int64Env("ORACLE_STALENESS_SECONDS", 300)
	if err != nil {
		return c, err
	}
	c.OracleMaxDeviationBps, err = int64Env("ORACLE_MAX_DEVIATION_BPS", 500)
	if err != nil {
		return c, err
	}
	c.OracleCircuitBreaker, err = boolEnv("ORACLE_CIRCUIT_BREAKER", true)
	if err != nil {
		return c, err
	}
	c.CollateralAsset = os.Getenv("COLLATERAL_ASSET")
	if c.CollateralAsset == "" {
		c.CollateralAsset = "USD"
	}
	c.PoolAccount = os.Getenv("POOL_ACCOUNT")
	if c.PoolAccount == "" {
		c.PoolAccount = "system:pool"
	}
	c.MinNotional = os.Getenv("MIN_NOTIONAL")
	if c.MinNotional == "" {
		c.MinNotional = "100"
	}
	c.MinHoldSteps, err = int64Env("MIN_HOLD_STEPS", 1)
	if err != nil {
		return c, err
	}
	c.LargePositionThreshold = os.Getenv("LARGE_POSITION_THRESHOLD")
	if c.LargePositionThreshold == "" {
		c.LargePositionThreshold = "100000"
	}
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func int64Env(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New("invalid " + key)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}
