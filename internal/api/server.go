package api

import (
	"MarketLedger/internal/market"
	"MarketLedger/internal/observability"
	"MarketLedger/internal/registry"
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Server is the HTTP/JSON front end over the engine. Mutations go
// through the engine's serialized operations; reads come from the
// engine's in-memory state, never from Postgres.
type Server struct {
	engine     *market.Engine
	registry   *registry.InMemory
	httpServer *http.Server
	router     *mux.Router
	health     *observability.HealthChecker
	metrics    *observability.Metrics
	log        zerolog.Logger
}

func NewServer(
	addr string,
	engine *market.Engine,
	reg *registry.InMemory,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Server {
	s := &Server{
		engine:   engine,
		registry: reg,
		router:   mux.NewRouter(),
		health:   health,
		metrics:  metrics,
		log:      log,
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Router exposes the underlying router so the websocket handler can
// mount its endpoints on the same listener.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(s.requestLogger)

	s.router.HandleFunc("/healthz", s.health.LivenessHandler).Methods("GET")
	s.router.HandleFunc("/readyz", s.health.ReadinessHandler).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/items", s.handleRegisterItem).Methods("POST")
	api.HandleFunc("/items/{id:[0-9]+}", s.handleGetItem).Methods("GET")
	api.HandleFunc("/items/{id:[0-9]+}/approve", s.handleApproveItem).Methods("POST")

	api.HandleFunc("/listings", s.handleCreateListing).Methods("POST")
	api.HandleFunc("/listings", s.handleListListings).Methods("GET")
	api.HandleFunc("/listings/{id:[0-9]+}", s.handleGetListing).Methods("GET")
	api.HandleFunc("/listings/{id:[0-9]+}/buy", s.handleBuy).Methods("POST")
	api.HandleFunc("/listings/{id:[0-9]+}/bids", s.handlePlaceBid).Methods("POST")
	api.HandleFunc("/listings/{id:[0-9]+}/end", s.handleEndAuction).Methods("POST")
	api.HandleFunc("/listings/{id:[0-9]+}/cancel", s.handleCancelListing).Methods("POST")

	api.HandleFunc("/withdrawals", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/balances/{principal}", s.handleGetBalance).Methods("GET")

	api.HandleFunc("/admin/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/admin/unpause", s.handleUnpause).Methods("POST")
	api.HandleFunc("/admin/status", s.handleStatus).Methods("GET")
}

// Start begins serving (blocking).
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http api listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
