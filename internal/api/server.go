package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bot-ledger-go/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// APIServer provides the HTTP interface of a node.
type APIServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer.
func NewAPIServer(cfg config.Node, handler *Handler, gatherer prometheus.Gatherer, logger *zap.Logger) *APIServer {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      Routes(handler, gatherer),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	return &APIServer{
		server: server,
		logger: logger.Named("api-server"),
	}
}

// Routes registers every endpoint on a new mux.
func Routes(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transactions", h.SubmitTransactionHandler)
	mux.HandleFunc("GET /api/transactions", h.TransactionsHandler)
	mux.HandleFunc("GET /api/bots/{address}", h.BotHandler)
	mux.HandleFunc("GET /api/owners/{owner}/bot", h.OwnerBotHandler)
	mux.HandleFunc("GET /api/accounts/{address}/balance", h.BalanceHandler)
	mux.HandleFunc("POST /api/airdrop", h.AirdropHandler)
	mux.HandleFunc("GET /health", h.HealthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
