// Package server exposes the colour over HTTP.
//
//	GET  /         six lowercase hex digits of the displayed colour
//	POST /         exactly six hex digits; anything else is rejected
//	GET  /status   JSON snapshot of the transition engine
//	GET  /history  recent colour requests from the ledger
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/rgbd/internal/color"
	"github.com/dokzlo13/rgbd/internal/intake"
	"github.com/dokzlo13/rgbd/internal/ledger"
	"github.com/dokzlo13/rgbd/internal/transition"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// Engine is the read side of the transition engine.
type Engine interface {
	Current() color.Color
	Snapshot() transition.Snapshot
}

// History lists recorded colour requests.
type History interface {
	Recent(limit int) ([]*ledger.Entry, error)
}

// Server is the HTTP boundary of the controller.
type Server struct {
	addr       string
	engine     Engine
	intake     *intake.Intake
	history    History
	limiter    *rate.Limiter
	httpServer *http.Server
}

// NewServer creates a new colour API server. history may be nil.
// A non-positive rateLimitRPS disables write rate limiting.
func NewServer(addr string, engine Engine, in *intake.Intake, history History, rateLimitRPS float64) *Server {
	s := &Server{
		addr:    addr,
		engine:  engine,
		intake:  in,
		history: history,
	}
	if rateLimitRPS > 0 {
		burst := int(math.Ceil(rateLimitRPS))
		s.limiter = rate.NewLimiter(rate.Limit(rateLimitRPS), burst)
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleGetColor)
	mux.HandleFunc("POST /{$}", s.handleSetColor)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /history", s.handleHistory)
	return mux
}

// Run starts the server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting color API server")

	// Handle graceful shutdown
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Color API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// ListenAndServe returns as soon as Shutdown starts; wait for in-flight
	// requests so their events are published before the bus closes.
	<-drained
	return nil
}

func (s *Server) handleGetColor(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Length", strconv.Itoa(color.HexLen))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.engine.Current().Hex()))
}

func (s *Server) handleSetColor(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		log.Warn().Str("remote", r.RemoteAddr).Msg("Color write rate limited")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	// One byte past the limit is enough to detect an oversized body.
	body, err := io.ReadAll(io.LimitReader(r.Body, color.HexLen+1))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read color request body")
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	res := s.intake.Submit(intake.SourceHTTP, body)
	w.Header().Set("X-Request-Id", res.RequestID)
	if res.Err != nil {
		http.Error(w, res.Err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "ledger disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read color history")
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
