package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crpt-gateway/client/crpt"
	"crpt-gateway/internal/logging"
	"crpt-gateway/middleware/ratelimit"
	"crpt-gateway/middleware/ratelimit/application"
	"crpt-gateway/middleware/ratelimit/domain"
	"crpt-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := loadEnvFile(); err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	cfg, err := readConfig()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.logLevel, cfg.logFormat)
	if err != nil {
		logrus.Fatalf("invalid LOG_LEVEL: %v", err)
	}

	gates, err := buildGates(cfg)
	if err != nil {
		logger.Fatalf("gate config error: %v", err)
	}
	gate, ok := gates.Get(cfg.gateName)
	if !ok {
		logger.Fatalf("gate %q not declared (available: %v)", cfg.gateName, gates.Names())
	}

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			logger.Fatalf("redis stats ping error: %v", err)
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	admission := application.AdmissionService{
		Gate:   gate,
		Stats:  statsStore,
		Logger: logger,
		Key:    domain.Key(cfg.gateName),
	}
	client, err := crpt.New(admission,
		crpt.WithBaseURL(cfg.upstreamURL),
		crpt.WithAuthToken(cfg.upstreamToken),
		crpt.WithTimeout(cfg.upstreamTimeout),
		crpt.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("client error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.Handle(createPath, createHandler(client, logger, cfg.requestTimeout))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h := http.Handler(mux)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
		Stats:          statsStore,
	})(h)
	if cfg.rateEnabled {
		store, err := buildInboundStore(cfg)
		if err != nil {
			logger.Fatalf("rate config error: %v", err)
		}
		store.StartJanitor(ctx)

		h = ratelimit.Middleware(ratelimit.Options{
			Store:               store,
			Stats:               statsStore,
			Logger:              logger,
			KeyHeader:           cfg.rateKeyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
		})(h)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("gateway listening on %s -> %s", cfg.listenAddr, cfg.upstreamURL)
	logger.Infof("gate: name=%q window=%s file=%q requestTimeout=%s", cfg.gateName, gate.Window(), cfg.gateFile, cfg.requestTimeout)
	logger.Infof("rate: enabled=%v strategy=%s rps=%.3f burst=%d window=%s keyHeader=%q trustXFF=%v", cfg.rateEnabled, cfg.rateStrategy, cfg.rateRPS, cfg.rateBurst, cfg.rateWindow, cfg.rateKeyHeader, cfg.trustXFF)
	logger.Infof("rate-stats: enabled=%v redisAddr=%q bucket=%q ttl=%s trackKeys=%v", cfg.rateStatsEnabled, cfg.rateStatsRedisAddr, cfg.rateStatsBucket, cfg.rateStatsTTL, cfg.rateStatsTrackKeys)
	logger.Infof("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("server error: %v", err)
		os.Exit(1)
	}
}

// buildGates registra os gates do GATE_FILE ou, sem arquivo, um único gate GATE_NAME com GATE_UNIT/GATE_LIMIT.
func buildGates(cfg config) (*infra.GateRegistry, error) {
	reg := infra.NewGateRegistry()
	if cfg.gateFile == "" {
		_, err := reg.Register(cfg.gateName, domain.Window{Unit: cfg.gateUnit, Limit: cfg.gateLimit})
		return reg, err
	}

	specs, err := infra.LoadGateFile(cfg.gateFile)
	if err != nil {
		return nil, err
	}
	if err := reg.RegisterAll(specs); err != nil {
		return nil, err
	}
	return reg, nil
}

func buildInboundStore(cfg config) (*infra.Store, error) {
	if cfg.rateStrategy == "window" {
		return infra.NewWindowStore(domain.Window{Unit: cfg.rateWindow, Limit: cfg.rateBurst})
	}
	return infra.NewStore(cfg.rateRPS, cfg.rateBurst), nil
}
