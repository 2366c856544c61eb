// Package main runs the price feed daemon with all components together:
// - Alert evaluation (continuous): sweeps active alerts against live rates
// - Feed subscriptions (continuous): mirrors alerted symbols onto the hub
// - History refresh (scheduled): re-resolves a trailing window per symbol
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/V0rtexyz/FinDash/internal/alerting"
	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/logging"
	"github.com/V0rtexyz/FinDash/internal/marketdata"
	"github.com/V0rtexyz/FinDash/internal/observability"
	"github.com/V0rtexyz/FinDash/internal/rates"
	"github.com/V0rtexyz/FinDash/internal/storage"
	chstore "github.com/V0rtexyz/FinDash/internal/storage/clickhouse"
	"github.com/V0rtexyz/FinDash/internal/storage/memory"
	"github.com/V0rtexyz/FinDash/internal/storage/migrations"
	pgstore "github.com/V0rtexyz/FinDash/internal/storage/postgres"
	"github.com/V0rtexyz/FinDash/internal/stream"
)

// Config collects every runtime knob, sourced from flags with environment
// variable defaults (flag wins). Validated before any component is wired.
type Config struct {
	ProviderBaseURL  string        `validate:"required,url"`
	ProviderAPIKey   string        `validate:"-"`
	ProviderTimeout  time.Duration `validate:"gt=0"`
	BreakerThreshold uint          `validate:"gte=1"`
	BreakerCooldown  time.Duration `validate:"gt=0"`
	FeedURL          string        `validate:"required,url"`
	ReconnectBase    time.Duration `validate:"gt=0"`
	ReconnectMax     int           `validate:"gte=1"`
	SweepInterval    time.Duration `validate:"gt=0"`
	SyncInterval     time.Duration `validate:"gt=0"`
	RefreshInterval  time.Duration `validate:"gt=0"`
	RefreshDays      int           `validate:"gte=1,lte=365"`
	PostgresDSN      string        `validate:"required_unless=UseMemory true"`
	ClickhouseDSN    string        `validate:"required_unless=UseMemory true"`
	UseMemory        bool          `validate:"-"`
	HTTPAddr         string        `validate:"required"`
	LogLevel         string        `validate:"oneof=debug info warn error"`
	LogConsole       bool          `validate:"-"`
	LogFile          bool          `validate:"-"`
	LogFilePath      string        `validate:"-"`
}

// Server holds the wired components of the feed daemon.
type Server struct {
	cfg    Config
	logger zerolog.Logger

	stores    *feedStores
	client    *marketdata.Client
	resolver  *rates.Resolver
	hub       *stream.Hub
	evaluator *alerting.Evaluator

	startedAt time.Time

	mu             sync.Mutex
	refreshRunning bool
	lastRefreshRun time.Time
	refreshRuns    int
}

// feedStores holds the storage implementations behind the feed.
type feedStores struct {
	alerts        storage.AlertStore
	notifications storage.NotificationStore
	history       storage.RateHistoryStore
}

func main() {
	// Merge .env into the environment without overriding existing vars.
	_ = godotenv.Load()

	providerURL := flag.String("provider-url", os.Getenv("PROVIDER_BASE_URL"), "Market data provider base URL")
	providerKey := flag.String("provider-key", os.Getenv("PROVIDER_API_KEY"), "Market data provider API key")
	providerTimeout := flag.Duration("provider-timeout", 10*time.Second, "Provider request timeout")
	breakerThreshold := flag.Uint("breaker-threshold", 5, "Consecutive provider failures before the breaker opens")
	breakerCooldown := flag.Duration("breaker-cooldown", 30*time.Second, "How long the breaker stays open before probing")
	feedURL := flag.String("feed-url", os.Getenv("FEED_WS_URL"), "Rates feed websocket URL")
	reconnectBase := flag.Duration("reconnect-base", time.Second, "Feed reconnect backoff unit")
	reconnectMax := flag.Int("reconnect-max", 5, "Feed reconnect attempts before giving up")
	sweepInterval := flag.Duration("sweep-interval", 30*time.Second, "Alert sweep interval")
	syncInterval := flag.Duration("sync-interval", time.Minute, "Feed subscription sync interval")
	refreshInterval := flag.Duration("refresh-interval", time.Hour, "History refresh interval")
	refreshDays := flag.Int("refresh-days", 7, "Trailing days re-resolved per history refresh")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")
	httpAddr := flag.String("http-addr", envOr("HTTP_ADDR", ":9090"), "Health/metrics/status HTTP address")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logConsole := flag.Bool("log-console", false, "Pretty console logging instead of JSON")
	logFile := flag.Bool("log-file", false, "Also log to a rotating file")
	logFilePath := flag.String("log-file-path", "", "Rotating log file path")

	flag.Parse()

	cfg := Config{
		ProviderBaseURL:  *providerURL,
		ProviderAPIKey:   *providerKey,
		ProviderTimeout:  *providerTimeout,
		BreakerThreshold: *breakerThreshold,
		BreakerCooldown:  *breakerCooldown,
		FeedURL:          *feedURL,
		ReconnectBase:    *reconnectBase,
		ReconnectMax:     *reconnectMax,
		SweepInterval:    *sweepInterval,
		SyncInterval:     *syncInterval,
		RefreshInterval:  *refreshInterval,
		RefreshDays:      *refreshDays,
		PostgresDSN:      *postgresDSN,
		ClickhouseDSN:    *clickhouseDSN,
		UseMemory:        *useMemory,
		HTTPAddr:         *httpAddr,
		LogLevel:         *logLevel,
		LogConsole:       *logConsole,
		LogFile:          *logFile,
		LogFilePath:      *logFilePath,
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Console = cfg.LogConsole
	logCfg.File = cfg.LogFile
	if cfg.LogFilePath != "" {
		logCfg.FilePath = cfg.LogFilePath
	}
	logger := logging.New(logCfg)

	if err := validator.New().Struct(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg.PostgresDSN, cfg.ClickhouseDSN, cfg.UseMemory)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create stores")
	}
	defer cleanup()

	client := marketdata.NewClient(cfg.ProviderBaseURL,
		marketdata.WithAPIKey(cfg.ProviderAPIKey),
		marketdata.WithTimeout(cfg.ProviderTimeout),
		marketdata.WithBreakerThreshold(uint32(cfg.BreakerThreshold)),
		marketdata.WithBreakerCooldown(cfg.BreakerCooldown),
		marketdata.WithLogger(logger),
	)

	classifier := rates.NewClassifier()
	refreshCtx, cancelRefresh := context.WithTimeout(ctx, 10*time.Second)
	if err := classifier.RefreshFromCatalog(refreshCtx, client); err != nil {
		logger.Warn().Err(err).Msg("asset catalog unavailable, using seeded classes")
	}
	cancelRefresh()

	live := rates.NewLiveRateProvider(client, logger)

	resolver := rates.NewResolver(rates.ResolverOptions{
		Source:     client,
		Live:       live,
		Classifier: classifier,
		Generator:  rates.NewGenerator(nil),
		History:    stores.history,
		Logger:     logger,
	})

	hub := stream.NewHub(stream.HubOptions{
		URL:         cfg.FeedURL,
		BaseBackoff: cfg.ReconnectBase,
		MaxAttempts: cfg.ReconnectMax,
		Logger:      logger,
	})

	evaluator := alerting.NewEvaluator(alerting.EvaluatorOptions{
		Alerts:        stores.alerts,
		Notifications: stores.notifications,
		Live:          live,
		Publisher:     hub,
		Interval:      cfg.SweepInterval,
		Logger:        logger,
	})

	server := &Server{
		cfg:       cfg,
		logger:    logger.With().Str("component", "server").Logger(),
		stores:    stores,
		client:    client,
		resolver:  resolver,
		hub:       hub,
		evaluator: evaluator,
		startedAt: time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		server.logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			server.logger.Error().Str("signal", sig.String()).Msg("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			server.logger.Error().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	httpSrv := server.startHTTPServer(cfg.HTTPAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	hub.Disconnect()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	_ = httpSrv.Shutdown(shutdownCtx)
	cancelShutdown()

	if err != nil && !errors.Is(err, context.Canceled) {
		server.logger.Fatal().Err(err).Msg("server exited with error")
	}

	server.logger.Info().Msg("shutdown complete")
}

// createStores selects the storage backend. Memory stores need no cleanup;
// the persistent pair runs migrations and returns a closer for both.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*feedStores, func(), error) {
	if useMemory {
		stores := &feedStores{
			alerts:        memory.NewAlertStore(),
			notifications: memory.NewNotificationStore(),
			history:       memory.NewRateHistoryStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &feedStores{
		alerts:        pgstore.NewAlertStore(pool),
		notifications: pgstore.NewNotificationStore(pool),
		history:       chstore.NewRateHistoryStore(conn),
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run starts the background loops and blocks until cancellation or the
// first component failure.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Msg("starting feed server")

	errCh := make(chan error, 3)

	go func() {
		err := s.evaluator.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("evaluator: %w", err)
		}
	}()

	go func() {
		err := s.runFeedSync(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("feed sync: %w", err)
		}
	}()

	go func() {
		err := s.runHistoryRefresh(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("history refresh: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runFeedSync keeps the hub's tracked set aligned with the symbols that
// currently have active alerts.
func (s *Server) runFeedSync(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.cfg.SyncInterval).Msg("feed sync started")

	subs := make(map[string]func())
	s.syncSubscriptions(ctx, subs)

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.syncSubscriptions(ctx, subs)
		}
	}
}

// syncSubscriptions subscribes symbols that gained alerts and releases
// symbols that no longer have any.
func (s *Server) syncSubscriptions(ctx context.Context, subs map[string]func()) {
	symbols, err := s.stores.alerts.ActiveSymbols(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("feed sync: listing active symbols failed")
		return
	}

	want := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		want[symbol] = true
	}

	for symbol, unsubscribe := range subs {
		if want[symbol] {
			continue
		}
		unsubscribe()
		delete(subs, symbol)
	}

	for symbol := range want {
		if _, ok := subs[symbol]; ok {
			continue
		}
		subs[symbol] = s.hub.Subscribe(symbol, func(update domain.RateUpdate) {
			s.logger.Debug().
				Str("symbol", update.Symbol).
				Float64("price", update.Price).
				Msg("feed update")
		})
	}
}

// runHistoryRefresh re-resolves the trailing window on schedule so the
// history store stays warm for every alerted symbol.
func (s *Server) runHistoryRefresh(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.cfg.RefreshInterval).Msg("history refresh started")

	// Run immediately on start
	s.refreshHistory(ctx)

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.refreshHistory(ctx)
		}
	}
}

// refreshHistory resolves the trailing window for each active symbol; the
// resolver records the results to the history store as a side effect.
func (s *Server) refreshHistory(ctx context.Context) {
	s.mu.Lock()
	if s.refreshRunning {
		s.mu.Unlock()
		s.logger.Debug().Msg("history refresh already running, skipping")
		return
	}
	s.refreshRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshRunning = false
		s.lastRefreshRun = time.Now()
		s.refreshRuns++
		s.mu.Unlock()
	}()

	symbols, err := s.stores.alerts.ActiveSymbols(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("history refresh: listing active symbols failed")
		return
	}
	if len(symbols) == 0 {
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -(s.cfg.RefreshDays - 1))

	began := time.Now()
	for _, symbol := range symbols {
		series, err := s.resolver.Resolve(ctx, symbol, start, end)
		if err != nil {
			// Resolve only fails on cancellation.
			return
		}
		s.logger.Debug().Str("symbol", symbol).Int("points", len(series)).Msg("history refreshed")
	}

	s.logger.Info().
		Int("symbols", len(symbols)).
		Dur("took", time.Since(began)).
		Msg("history refresh completed")
}

// startHTTPServer serves health, metrics, and status in the background.
func (s *Server) startHTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server failed")
		}
	}()

	return srv
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status         string    `json:"status"`
	Uptime         string    `json:"uptime"`
	Storage        string    `json:"storage"`
	HubState       string    `json:"hub_state"`
	TrackedSymbols []string  `json:"tracked_symbols"`
	BreakerState   string    `json:"breaker_state"`
	LastSweepAt    time.Time `json:"last_sweep_at,omitempty"`
	SweepEvaluated int       `json:"sweep_evaluated"`
	SweepTriggered int       `json:"sweep_triggered"`
	SweepDeferred  int       `json:"sweep_deferred"`
	LastRefreshAt  time.Time `json:"last_refresh_at,omitempty"`
	RefreshRuns    int       `json:"refresh_runs"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sweep, sweepAt := s.evaluator.LastSweep()

	s.mu.Lock()
	lastRefresh := s.lastRefreshRun
	refreshRuns := s.refreshRuns
	s.mu.Unlock()

	storageKind := "postgres+clickhouse"
	if s.cfg.UseMemory {
		storageKind = "memory"
	}

	resp := StatusResponse{
		Status:         "running",
		Uptime:         time.Since(s.startedAt).String(),
		Storage:        storageKind,
		HubState:       s.hub.State().String(),
		TrackedSymbols: s.hub.Tracked(),
		BreakerState:   s.client.BreakerState().String(),
		LastSweepAt:    sweepAt,
		SweepEvaluated: sweep.Evaluated,
		SweepTriggered: sweep.Triggered,
		SweepDeferred:  sweep.Deferred,
		LastRefreshAt:  lastRefresh,
		RefreshRuns:    refreshRuns,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
