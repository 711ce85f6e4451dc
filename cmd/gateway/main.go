package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/master-pd/nomi-sub001/middleware/floodguard"
	"github.com/master-pd/nomi-sub001/middleware/floodguard/application"
	"github.com/master-pd/nomi-sub001/middleware/floodguard/domain"
	"github.com/master-pd/nomi-sub001/middleware/floodguard/infra"
)

func main() {
	// .env é opcional; variáveis do ambiente real têm precedência
	_ = godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		println("config error:", err.Error())
		os.Exit(1)
	}

	logger, err := newLogger(cfg.env, cfg.logLevel)
	if err != nil {
		println("logger error:", err.Error())
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		logger.Fatal("invalid UPSTREAM_URL", zap.Error(err))
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error", zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	guard, err := infra.NewGuard(cfg.flood,
		infra.WithLogger(logger),
		infra.WithIdleTTL(cfg.floodIdleTTL),
		infra.WithSweepEvery(cfg.floodSweepEvery),
	)
	if err != nil {
		logger.Fatal("invalid flood config", zap.Error(err))
	}

	var statsStore domain.StatsStore
	if cfg.statsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			logger.Fatal("redis stats ping error", zap.Error(err))
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackKeys(cfg.statsTrackKeys),
		)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	guard.StartJanitor(ctx)

	h := http.Handler(proxy)
	h = floodguard.ConcurrencyMiddleware(floodguard.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	h = floodguard.Middleware(floodguard.Options{
		Guard:              guard,
		Stats:              statsStore,
		IdentityHeader:     cfg.identityHeader,
		ScopeHeader:        cfg.scopeHeader,
		TrustXForwardedFor: cfg.trustXFF,
		RejectStatus:       http.StatusTooManyRequests,
		AddFloodHeaders:    cfg.addHeaders,
	})(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	// API administrativa + /metrics em listener separado do tráfego de ingestão
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.Handle("/", floodguard.NewAdminRouter(floodguard.AdminOptions{
		Service:   application.AdminService{Guard: guard},
		RateLimit: infra.NewBucketStore(cfg.adminRateRPS, cfg.adminRateBurst),
	}))
	adminSrv := &http.Server{
		Addr:              cfg.adminAddr,
		Handler:           adminMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = adminSrv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("admin listening", zap.String("addr", cfg.adminAddr))
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server error", zap.Error(err))
		}
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("upstream", target.String()))
	logger.Info("floodguard",
		zap.Bool("enabled", cfg.flood.Enabled),
		zap.Float64("max_per_second", cfg.flood.MaxMessagesPerSecond),
		zap.Int("max_per_minute", cfg.flood.MaxMessagesPerMinute),
		zap.Int("max_per_5minutes", cfg.flood.MaxMessagesPer5Minutes),
		zap.Duration("auto_reset", cfg.flood.AutoReset),
		zap.String("identity_header", cfg.identityHeader),
		zap.Bool("trust_xff", cfg.trustXFF))
	logger.Info("flood-stats",
		zap.Bool("enabled", cfg.statsEnabled),
		zap.String("redis_addr", cfg.statsRedisAddr),
		zap.String("bucket", cfg.statsBucket),
		zap.Duration("ttl", cfg.statsTTL),
		zap.Bool("track_keys", cfg.statsTrackKeys))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

type config struct {
	env      string
	logLevel string

	listenAddr  string
	adminAddr   string
	upstreamURL string

	flood           domain.Config
	floodIdleTTL    time.Duration
	floodSweepEvery time.Duration

	identityHeader string
	scopeHeader    string
	trustXFF       bool
	addHeaders     bool

	concurrencyMax     int
	concurrencyTimeout time.Duration

	adminRateRPS   float64
	adminRateBurst int

	statsEnabled       bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsBucket        string
	statsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.env = getenvDefault("ENV", "development")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.adminAddr = getenvDefault("ADMIN_ADDR", ":9090")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")

	flood := domain.DefaultConfig()
	flood.Enabled = getenvBoolDefault("FLOOD_ENABLED", true)
	flood.MaxMessagesPerSecond = getenvFloatDefault("FLOOD_MAX_PER_SECOND", flood.MaxMessagesPerSecond)
	flood.MaxMessagesPerMinute = getenvIntDefault("FLOOD_MAX_PER_MINUTE", flood.MaxMessagesPerMinute)
	flood.MaxMessagesPer5Minutes = getenvIntDefault("FLOOD_MAX_PER_5MINUTES", flood.MaxMessagesPer5Minutes)
	flood.MuteDurations.FirstOffense = getenvDurationDefault("FLOOD_MUTE_FIRST", flood.MuteDurations.FirstOffense)
	flood.MuteDurations.SecondOffense = getenvDurationDefault("FLOOD_MUTE_SECOND", flood.MuteDurations.SecondOffense)
	flood.MuteDurations.ThirdOffense = getenvDurationDefault("FLOOD_MUTE_THIRD", flood.MuteDurations.ThirdOffense)
	flood.MuteDurations.Persistent = getenvDurationDefault("FLOOD_MUTE_PERSISTENT", flood.MuteDurations.Persistent)
	flood.AutoReset = getenvDurationDefault("FLOOD_AUTO_RESET", flood.AutoReset)
	cfg.flood = flood
	cfg.floodIdleTTL = getenvDurationDefault("FLOOD_IDLE_TTL", 24*time.Hour)
	cfg.floodSweepEvery = getenvDurationDefault("FLOOD_SWEEP_EVERY", 10*time.Minute)

	cfg.identityHeader = getenvDefault("IDENTITY_HEADER", "X-User-ID")
	cfg.scopeHeader = getenvDefault("SCOPE_HEADER", "X-Chat-ID")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault("ADD_FLOOD_HEADERS", false)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.adminRateRPS = getenvFloatDefault("ADMIN_RATE_RPS", 5)
	cfg.adminRateBurst = getenvIntDefault("ADMIN_RATE_BURST", 10)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsRedisAddr = getenvDefault("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "floodguard:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if err := cfg.flood.Validate(); err != nil {
		return config{}, err
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.adminRateRPS <= 0 || cfg.adminRateBurst <= 0 {
		return config{}, errors.New("ADMIN_RATE_RPS and ADMIN_RATE_BURST must be > 0")
	}
	if cfg.statsEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_ENABLED=true")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
