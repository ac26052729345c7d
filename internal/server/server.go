// Package server exposes the approval-relay API over HTTP. It is thin
// glue: credential adapters and the authenticator guard the door, the
// pairing and approval actors own all state, and the push sender is fired
// in the background on request creation.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pocketgate/pocketgate/internal/approval"
	"github.com/pocketgate/pocketgate/internal/audit"
	"github.com/pocketgate/pocketgate/internal/auth"
	"github.com/pocketgate/pocketgate/internal/pairing"
	"github.com/pocketgate/pocketgate/internal/webpush"
)

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// WebAppOrigin is the CORS origin granted to the mobile web app.
	// Ignored in development, where any origin is allowed.
	WebAppOrigin string
	Environment  string
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		Environment:  "development",
	}
}

// Server is the HTTP front end for the approval relay.
type Server struct {
	httpServer *http.Server
	addr       string
	log        *slog.Logger

	registry      *pairing.Registry
	requests      *approval.Requests
	authenticator *auth.Authenticator
	sender        *webpush.Sender
	vapidPublic   string
	auditSink     audit.Sink

	webAppOrigin string
	environment  string
}

// New creates a new server instance.
func New(
	cfg Config,
	log *slog.Logger,
	registry *pairing.Registry,
	requests *approval.Requests,
	authenticator *auth.Authenticator,
	sender *webpush.Sender,
	vapidPublic string,
	auditSink audit.Sink,
) *Server {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s := &Server{
		addr:          addr,
		log:           log,
		registry:      registry,
		requests:      requests,
		authenticator: authenticator,
		sender:        sender,
		vapidPublic:   vapidPublic,
		auditSink:     auditSink,
		webAppOrigin:  cfg.WebAppOrigin,
		environment:   cfg.Environment,
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root HTTP handler, exported for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		s.log.Info("server shut down gracefully")
		return nil
	case err := <-errChan:
		return err
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", s.handleHealth)
	r.Get("/vapid-public-key", s.handleVAPIDPublicKey)

	r.Post("/pair/init", s.handlePairInit)
	r.Post("/pair/register-push", s.handleRegisterPush)

	// Current generation: credentials in headers.
	r.Route("/v2", func(r chi.Router) {
		r.Post("/request", s.handleCreateRequestV2)
		r.Get("/decision/{requestID}", s.handlePollDecisionV2)
		r.Post("/decision/{requestID}", s.handleSubmitDecisionV2)
		r.Get("/requests/pending", s.handleListPendingV2)
	})

	// Legacy generation: credentials embedded in body or query string.
	r.Post("/request", s.handleCreateRequestLegacy)
	r.Get("/request/{requestID}", s.handleGetRequestLegacy)
	r.Post("/decision/{requestID}", s.handleSubmitDecisionLegacy)
	r.Get("/decision/{requestID}", s.handlePollDecisionLegacy)
	r.Get("/requests/pending", s.handleListPendingLegacy)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": s.vapidPublic})
}

// cors restricts browser access to the configured web-app origin. In
// development any origin is accepted.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.webAppOrigin
		if s.environment == "development" {
			origin = "*"
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Pairing-ID, X-Timestamp, X-Nonce")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) audit(ctx context.Context, rec audit.Record) {
	rec.Time = time.Now()
	if err := s.auditSink.Ingest(ctx, []audit.Record{rec}); err != nil {
		s.log.Warn("audit ingest failed", "error", err)
	}
}
