// Package status exposes a small local HTTP endpoint with the monitor's
// runtime state, for the status CLI command and for probes.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Payload is the /api/status response body.
type Payload struct {
	Column          string `json:"column"`
	CheckEvery      string `json:"checkEvery"`
	LastKnownCount  int    `json:"lastKnownCount"`
	Observed        bool   `json:"observed"`
	ActiveReminders int    `json:"activeReminders"`
}

// Provider supplies the current payload on each request.
type Provider func() Payload

type Server struct {
	srv *http.Server
	log *slog.Logger
}

func NewServer(host string, port int, provide Provider, log *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           newRouter(provide, log),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With("component", "status"),
	}
}

func newRouter(provide Provider, log *slog.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provide()); err != nil {
			log.Warn("encode status failed", "err", err)
		}
	}).Methods(http.MethodGet)
	return r
}

// Start serves in the background until Stop.
func (s *Server) Start() {
	go func() {
		s.log.Info("status endpoint listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warn("status server error", "err", err)
		}
	}()
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
