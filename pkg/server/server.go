package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Options selects which endpoints are served
type Options struct {
	Port        int
	Metrics     bool
	HealthCheck bool
}

// Server exposes /metrics and /health
type Server struct {
	opts     Options
	router   *mux.Router
	server   *http.Server
	listener net.Listener
	log      logrus.FieldLogger
}

// New creates a Server. gatherer backs /metrics.
func New(opts Options, gatherer prometheus.Gatherer, log logrus.FieldLogger) *Server {
	router := mux.NewRouter()

	s := &Server{
		opts:   opts,
		router: router,
		server: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.WithField("component", "http"),
	}

	if opts.Metrics {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	if opts.HealthCheck {
		router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	}

	return s
}

// Enabled reports whether any endpoint is served.
func (s *Server) Enabled() bool {
	return s.opts.Metrics || s.opts.HealthCheck
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.opts.Port))
	if err != nil {
		return errors.Wrapf(err, "failed to listen on port %d", s.opts.Port)
	}

	s.listener = listener

	s.log.WithFields(logrus.Fields{
		"port":    s.opts.Port,
		"metrics": s.opts.Metrics,
		"health":  s.opts.HealthCheck,
	}).Info("HTTP server started")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server failed")
		}
	}()

	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to stop HTTP server")
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.log.WithError(err).Debug("Failed to write health response")
	}
}
