// Package rpc exposes the node's HTTP surface: the public attestation and
// wallet endpoints, the admin operations behind the X-Admin-Key header, and
// the peer message inbox.
package rpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"

	"github.com/rustchain-network/rustchain/attestation"
	"github.com/rustchain-network/rustchain/db/iface"
	"github.com/rustchain-network/rustchain/epoch"
	"github.com/rustchain-network/rustchain/ledger"
	"github.com/rustchain-network/rustchain/p2p"
)

// Config options for the HTTP service.
type Config struct {
	Host           string
	Port           int
	AdminKey       string
	DB             iface.Database
	Attestation    *attestation.Service
	Epoch          *epoch.Service
	Ledger         *ledger.Service
	P2P            *p2p.Service
	TrustedProxies []*net.IPNet
}

// Service is the node's HTTP server.
type Service struct {
	cfg       *Config
	ctx       context.Context
	cancel    context.CancelFunc
	server    *http.Server
	router    *mux.Router
	startTime time.Time
	startErr  error
}

// New constructs the HTTP service and registers all routes.
func New(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, errors.New("rpc service requires a database")
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}
	s.registerRoutes()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Admin-Key"},
	}).Handler(s.requestLogger(s.router))

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Service) registerRoutes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/epoch", s.handleEpoch).Methods(http.MethodGet)
	r.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/miners", s.handleMiners).Methods(http.MethodGet)
	r.HandleFunc("/attest/challenge", s.handleChallenge).Methods(http.MethodPost)
	r.HandleFunc("/attest/submit", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/wallet/balance", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/wallet/transfer/signed", s.handleTransfer).Methods(http.MethodPost)
	r.HandleFunc("/withdraw/request", s.handleWithdraw).Methods(http.MethodPost)
	r.HandleFunc("/rewards/settle", s.admin(s.handleSettle)).Methods(http.MethodPost)
	r.HandleFunc("/rewards/epoch/{n:[0-9]+}", s.handleEpochRewards).Methods(http.MethodGet)
	r.HandleFunc("/sync/status", s.admin(s.handleSyncStatus)).Methods(http.MethodGet)
	r.HandleFunc("/pending/confirm", s.admin(s.handlePendingConfirm)).Methods(http.MethodPost)
	r.HandleFunc("/p2p/message", s.handleP2PMessage).Methods(http.MethodPost)
	r.HandleFunc("/p2p/revoke", s.admin(s.handlePeerRevoke)).Methods(http.MethodPost)
}

// Start begins serving in the background.
func (s *Service) Start() {
	log.WithField("address", s.server.Addr).Info("Starting HTTP server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.startErr = err
			log.WithError(err).Error("HTTP server failed")
		}
	}()
}

// Stop shuts the server down, draining in-flight requests briefly.
func (s *Service) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status surfaces a failed listener.
func (s *Service) Status() error {
	return s.startErr
}

// Router exposes the route table for tests.
func (s *Service) Router() http.Handler {
	return s.requestLogger(s.router)
}
