package main

import (
	"MarketLedger/internal/api"
	"MarketLedger/internal/broadcast"
	"MarketLedger/internal/clock"
	"MarketLedger/internal/config"
	"MarketLedger/internal/event"
	"MarketLedger/internal/market"
	"MarketLedger/internal/observability"
	"MarketLedger/internal/persistence"
	"MarketLedger/internal/registry"
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// loggingPayoutSink releases withdrawn value to the principal's external
// account. This build records the transfer; a production custody deploy
// substitutes its settlement rail behind market.PayoutSink.
type loggingPayoutSink struct {
	log zerolog.Logger
}

func (s *loggingPayoutSink) Transfer(ctx context.Context, to uuid.UUID, amount int64) error {
	s.log.Info().
		Str("principal", to.String()).
		Int64("amount", amount).
		Msg("payout released")
	return nil
}

func main() {
	log := observability.NewLogger("main")
	log.Info().Msg("marketd starting")

	cfg, err := config.Load(os.Getenv("MARKET_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	self, err := uuid.Parse(cfg.EnginePrincipal)
	if err != nil {
		log.Fatal().Err(err).Msg("parse engine principal")
	}
	operator, err := uuid.Parse(cfg.OperatorPrincipal)
	if err != nil {
		log.Fatal().Err(err).Msg("parse operator principal")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("postgres connected")

	migrator := persistence.NewMigrator(db, cfg.MigrationsDir, observability.NewLogger("migrator"))
	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}
	log.Info().Msg("migrations applied")

	// --- NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		log.Fatal().Err(err).Msg("jetstream init")
	}
	if err := broadcast.EnsureStream(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure events stream")
	}
	log.Info().Msg("nats connected")

	// --- Observability ---
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	// --- Engine ---
	persistChan := make(chan event.Notification, cfg.PersistChanSize)
	broadcastChan := make(chan event.Notification, cfg.BroadcastChanSize)

	reg := registry.NewInMemory()
	sink := &loggingPayoutSink{log: observability.NewLogger("payouts")}

	engine := market.NewEngine(self, operator, reg, sink, clock.NewSystem(),
		persistChan, broadcastChan, metrics)

	restored, err := persistence.LoadState(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("load persisted state")
	}
	// Active listings were in engine custody when the state was written;
	// the in-process registry must agree or the custody sweep trips.
	for _, l := range restored.Listings {
		if l.Active {
			reg.Register(l.ItemID, self)
		}
	}
	engine.Restore(restored.Listings, restored.Balances, restored.LastSequence)
	log.Info().
		Int("listings", len(restored.Listings)).
		Int("balances", len(restored.Balances)).
		Int64("last_sequence", restored.LastSequence).
		Msg("state restored")

	// --- Persistence worker ---
	worker := persistence.NewWorker(db, persistChan,
		cfg.PersistBatchSize, cfg.PersistFlushTimeout,
		metrics, observability.NewLogger("persistence"))
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("persistence worker stopped")
		}
	}()

	// --- Outbound fan-out ---
	redisPub, err := broadcast.NewRedisPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect")
	}
	defer redisPub.Close()

	fanout := broadcast.NewFanout(broadcastChan, metrics, observability.NewLogger("fanout"))
	fanout.AddSink("nats", broadcast.NewNATSPublisher(js, observability.NewLogger("nats")))
	fanout.AddSink("redis", redisPub)
	go func() {
		if err := fanout.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("broadcast fanout stopped")
		}
	}()

	// --- Websocket hub fed from redis ---
	hub := broadcast.NewHub(observability.NewLogger("hub"))
	sub, err := broadcast.NewRedisSubscriber(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
		hub, observability.NewLogger("subscriber"))
	if err != nil {
		log.Fatal().Err(err).Msg("redis subscriber connect")
	}
	defer sub.Close()
	go func() {
		if err := sub.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("redis subscriber stopped, websocket feed is dead")
		}
	}()

	// --- HTTP API ---
	apiServer := api.NewServer(cfg.HTTPAddr, engine, reg, health, metrics,
		observability.NewLogger("api"))
	broadcast.NewWSHandler(hub, observability.NewLogger("ws")).RegisterRoutes(apiServer.Router())
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("http api")
		}
	}()

	// --- Metrics server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", health.LivenessHandler)
	metricsMux.HandleFunc("/readyz", health.ReadinessHandler)
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server")
		}
	}()

	health.SetReady(true)
	log.Info().Msg("marketd ready")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	health.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api shutdown")
	}
	metricsServer.Shutdown(shutdownCtx)

	// No more operations can commit; let the worker do its final flush.
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("persistence worker did not drain in time")
	}

	log.Info().Msg("marketd stopped")
}
