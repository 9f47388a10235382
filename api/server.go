package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gregtusar/simfeed/internal/config"
	"github.com/gregtusar/simfeed/pkg/feed"
	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Feed is the part of the engine the API serves.
type Feed interface {
	Snapshot() *models.Snapshot
	PlaceOrder(req models.OrderRequest) (models.Trade, error)
	Subscribe(buffer int) *feed.Subscription
	Unsubscribe(sub *feed.Subscription)
}

type Server struct {
	feed     Feed
	logger   *logrus.Logger
	cfg      config.ServerConfig
	verifier *TokenVerifier
	limiter  *rate.Limiter

	pingPeriod time.Duration
	httpServer *http.Server
}

// NewServer wires the routes. A nil verifier leaves order placement open.
func NewServer(f Feed, logger *logrus.Logger, cfg config.ServerConfig, verifier *TokenVerifier) *Server {
	limit := rate.Inf
	if cfg.OrderRate > 0 {
		limit = rate.Limit(cfg.OrderRate)
	}
	burst := cfg.OrderBurst
	if burst < 1 {
		burst = 1
	}

	s := &Server{
		feed:       f,
		logger:     logger,
		cfg:        cfg,
		verifier:   verifier,
		limiter:    rate.NewLimiter(limit, burst),
		pingPeriod: 30 * time.Second,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.StrictSlash(true)

	routes := r.PathPrefix("/api").Subrouter()
	routes.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	routes.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	routes.HandleFunc("/ticks", s.handleTicks).Methods(http.MethodGet)
	routes.HandleFunc("/orderbook", s.handleOrderBook).Methods(http.MethodGet)
	routes.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	routes.HandleFunc("/candles", s.handleCandles).Methods(http.MethodGet)
	routes.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	routes.HandleFunc("/orders", s.requireToken(s.handlePlaceOrder)).Methods(http.MethodPost)
	routes.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)

	// Enable CORS for browser dashboards
	return corsMiddleware(r)
}

// Start blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Infof("Starting API server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.feed.Snapshot()
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"symbol":    snap.Symbol,
		"running":   snap.Running,
		"sequence":  snap.Sequence,
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.feed.Snapshot())
}

func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.feed.Snapshot().Ticks)
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.feed.Snapshot().OrderBook)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.feed.Snapshot().Trades)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.feed.Snapshot().Candles)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.feed.Snapshot()
	response := struct {
		Symbol       string `json:"symbol"`
		CurrentPrice string `json:"current_price"`
		models.RollingStats
	}{
		Symbol:       snap.Symbol,
		CurrentPrice: snap.CurrentPrice.String(),
		RollingStats: snap.Stats,
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, "order rate limit exceeded")
		return
	}

	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed order request: "+err.Error())
		return
	}

	trade, err := s.feed.PlaceOrder(req)
	if err != nil {
		if errors.Is(err, feed.ErrInvalidOrderInput) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.WithError(err).Error("Failed to place order")
		s.writeError(w, http.StatusInternalServerError, "failed to place order")
		return
	}

	s.writeJSON(w, http.StatusCreated, trade)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
