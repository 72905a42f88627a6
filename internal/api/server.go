// Package api exposes the bridge's HTTP surface: the chat endpoints, session
// management, and health.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sfbridge-dev/sfbridge/internal/config"
	"github.com/sfbridge-dev/sfbridge/internal/models"
	"github.com/sfbridge-dev/sfbridge/internal/orchestrator"
	"github.com/sfbridge-dev/sfbridge/internal/ratelimit"
	"github.com/sfbridge-dev/sfbridge/internal/session"
)

// TokenValidator verifies Salesforce bearer credentials.
type TokenValidator interface {
	Validate(ctx context.Context, token, instanceURL string) (*models.AuthContext, error)
}

// TurnRunner executes one chat turn against the configured backend.
type TurnRunner interface {
	Run(ctx context.Context, sess *session.Session, userMessage string) (*orchestrator.Result, error)
}

// ToolStatus reports tool-server connectivity for health checks.
type ToolStatus interface {
	Connected() bool
}

// Server wires the HTTP surface to the bridge components.
type Server struct {
	cfg       *config.Config
	log       zerolog.Logger
	validator TokenValidator
	limiter   *ratelimit.Limiter
	store     *session.Store
	runner    TurnRunner
	tools     ToolStatus
}

// NewServer creates a Server.
func NewServer(
	cfg *config.Config,
	log zerolog.Logger,
	validator TokenValidator,
	limiter *ratelimit.Limiter,
	store *session.Store,
	runner TurnRunner,
	tools ToolStatus,
) *Server {
	return &Server{
		cfg:       cfg,
		log:       log,
		validator: validator,
		limiter:   limiter,
		store:     store,
		runner:    runner,
		tools:     tools,
	}
}

// Router builds the route table. Chat routes sit behind credential
// enforcement; the chat POST additionally sits behind the rate limiter so
// rejection happens before any session work.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(s.authMiddleware)

	apiRouter.Handle("/chat", s.rateLimitMiddleware(http.HandlerFunc(s.handleChat))).Methods("POST")
	apiRouter.HandleFunc("/chat/{sessionId}", s.handleGetSession).Methods("GET")
	apiRouter.HandleFunc("/chat/{sessionId}", s.handleDeleteSession).Methods("DELETE")

	return r
}

// HTTPServer builds the http.Server for the configured listen address.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}
