// Package server provides the HTTP API for procflow.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/openprocure/procflow/internal/auth"
	"github.com/openprocure/procflow/internal/config"
	"github.com/openprocure/procflow/internal/export"
	"github.com/openprocure/procflow/internal/search"
	"github.com/openprocure/procflow/internal/storage"
	"github.com/openprocure/procflow/internal/workflow"
)

// Server is the HTTP server for the procflow API.
type Server struct {
	workflow *workflow.Service
	storage  storage.Storage
	issuer   *auth.TokenIssuer
	index    *search.Index
	export   *export.Service
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. index may be nil,
// in which case the search endpoint reports it as unavailable.
func NewServer(
	wf *workflow.Service,
	store storage.Storage,
	issuer *auth.TokenIssuer,
	index *search.Index,
	exp *export.Service,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		workflow: wf,
		storage:  store,
		issuer:   issuer,
		index:    index,
		export:   exp,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/auth/register", s.handleRegister)
	r.Post("/api/v1/auth/login", s.handleLogin)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.issuer, s.storage))
		r.Get("/api/v1/auth/me", s.handleMe)
		r.Get("/api/v1/requests", s.handleListRequests)
		r.Post("/api/v1/requests", s.handleCreateRequest)
		r.Get("/api/v1/requests/search", s.handleSearchRequests)
		r.Get("/api/v1/requests/{id}", s.handleGetRequest)
		r.Put("/api/v1/requests/{id}", s.handleUpdateRequest)
		r.Patch("/api/v1/requests/{id}/approve", s.handleApprove)
		r.Patch("/api/v1/requests/{id}/reject", s.handleReject)
		r.Post("/api/v1/requests/{id}/receipt", s.handleSubmitReceipt)
		r.Get("/api/v1/export/purchase-orders", s.handleExportPurchaseOrders)
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
