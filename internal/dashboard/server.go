// Package dashboard serves the operational endpoints of the predictor:
// health, Prometheus metrics and a description of the loaded model.
//
// It deliberately has no predict route; predictions are taken through the
// CLI only.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"bird-conservation/internal/metrics"
	"bird-conservation/internal/ml"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// HistoryCounter reports how many predictions have been persisted.
type HistoryCounter interface {
	Count() (int, error)
}

// Health is the /health response body.
type Health struct {
	Healthy        bool      `json:"healthy"`
	ModelVersion   string    `json:"model_version"`
	Format         string    `json:"format"`
	Classes        int       `json:"classes"`
	FailureRate    float64   `json:"failure_rate"`
	HistoryRecords *int      `json:"history_records,omitempty"`
	Uptime         string    `json:"uptime"`
	Timestamp      time.Time `json:"timestamp"`
}

// Server exposes the ops endpoints over HTTP.
type Server struct {
	service   *ml.Service
	metrics   *metrics.Metrics
	history   HistoryCounter
	server    *http.Server
	startedAt time.Time
	isRunning bool
	mu        sync.Mutex
}

// NewServer wires the routes. history may be nil when no data path is
// configured.
func NewServer(service *ml.Service, m *metrics.Metrics, history HistoryCounter, port int) *Server {
	s := &Server{
		service:   service,
		metrics:   m,
		history:   history,
		startedAt: time.Now(),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/model/info", s.handleModelInfo).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// Start serves in the background until Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("ops server is already running")
	}

	go func() {
		log.Info().Str("addr", s.server.Addr).Msg("starting ops server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("ops server failed")
		}
	}()

	s.isRunning = true
	return nil
}

// Stop shuts the server down, waiting at most until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shut down ops server")
		return err
	}
	s.isRunning = false
	log.Info().Msg("ops server stopped")
	return nil
}

func (s *Server) health() Health {
	info := s.service.Info()
	h := Health{
		Healthy:      len(info.Classes) > 0,
		ModelVersion: info.Version,
		Format:       info.Format,
		Classes:      len(info.Classes),
		FailureRate:  s.metrics.FailureRate(),
		Uptime:       time.Since(s.startedAt).Round(time.Second).String(),
		Timestamp:    time.Now().UTC(),
	}
	if s.history != nil {
		n, err := s.history.Count()
		if err != nil {
			log.Warn().Err(err).Msg("history count failed")
			h.Healthy = false
		} else {
			h.HistoryRecords = &n
		}
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health()

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Info())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}
