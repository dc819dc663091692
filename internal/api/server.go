package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/miradorstack/feedback-lab/internal/config"
)

// NewRouter builds the HTTP handler tree for the feedback lab API.
func NewRouter(logger *slog.Logger, service FeedbackAPI, cors config.CORSConfig, limits config.RateLimitConfig) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{logger: logger, service: service}

	router := mux.NewRouter()
	router.Use(requestIDMiddleware, instrumentMiddleware(logger), recoveryMiddleware(logger))
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	router.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	router.HandleFunc("/readyz", h.readyz).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api").Subrouter()
	var generate http.Handler = http.HandlerFunc(h.generate)
	if limits.Enabled {
		generate = newClientLimiter(limits.RequestsPerSecond, limits.Burst, limits.TrustForwardedFor).middleware(generate)
	}
	apiRouter.Handle("/generate", generate).Methods(http.MethodPost)
	apiRouter.HandleFunc("/responses/{id}", h.getResponse).Methods(http.MethodGet)
	apiRouter.HandleFunc("/evaluations", h.submitEvaluation).Methods(http.MethodPost)
	apiRouter.HandleFunc("/evaluations", h.listEvaluations).Methods(http.MethodGet)
	apiRouter.HandleFunc("/analytics", h.analytics).Methods(http.MethodGet)

	return corsHandler(cors.AllowedOrigins, router)
}

// HTTPServer wraps the API http.Server and its listener.
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
}

// NewHTTPServer binds the API handler to cfg.Address.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) (*HTTPServer, error) {
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}
	return &HTTPServer{
		server: &http.Server{
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		listener: lis,
	}, nil
}

// Start serves until Shutdown is invoked. A graceful shutdown returns nil.
func (s *HTTPServer) Start() error {
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Address exposes the bound listener address.
func (s *HTTPServer) Address() string {
	return s.listener.Addr().String()
}
