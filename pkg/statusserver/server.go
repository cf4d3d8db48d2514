// Package statusserver exposes liveness and cache status over HTTP for the
// long-running cachectl watch process.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/illmade-knight/go-chatsync/pkg/connectivity"
	"github.com/illmade-knight/go-chatsync/pkg/entitycache"
	"github.com/rs/zerolog"
)

// Status is the body of GET /status.
type Status struct {
	Namespace  string               `json:"namespace"`
	Connected  *bool                `json:"connected,omitempty"`
	Keys       int                  `json:"keys"`
	LastSynced map[string]time.Time `json:"lastSynced"`
}

// Server serves /healthz and /status.
type Server struct {
	logger     zerolog.Logger
	addr       string
	namespace  string
	cache      *entitycache.EntityCache
	conn       connectivity.Provider
	httpServer *http.Server
	mux        *http.ServeMux

	mu         sync.RWMutex
	actualAddr string
}

// New creates a Server listening on addr once started. conn may be nil.
func New(addr, namespace string, cache *entitycache.EntityCache, conn connectivity.Provider, logger zerolog.Logger) *Server {
	s := &Server{
		logger:    logger.With().Str("component", "StatusServer").Logger(),
		addr:      addr,
		namespace: namespace,
		cache:     cache,
		conn:      conn,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /healthz", healthzHandler)
	s.mux.HandleFunc("GET /status", s.statusHandler)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start listens and serves in a background goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.actualAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info().Str("address", s.actualAddr).Msg("Status server starting to listen")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Status server failed")
		}
	}()
	return nil
}

// Shutdown gracefully stops the server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error during status server shutdown.")
		return err
	}
	s.logger.Info().Msg("Status server stopped.")
	return nil
}

// Addr returns the address the server is bound to, useful with port 0.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actualAddr
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := Status{
		Namespace:  s.namespace,
		Keys:       len(s.cache.NamespaceKeys(ctx)),
		LastSynced: make(map[string]time.Time),
	}
	if s.conn != nil {
		connected := s.conn.IsConnected()
		status.Connected = &connected
	}
	for _, kind := range []entitycache.Kind{entitycache.KindConversations, entitycache.KindMessages, entitycache.KindProfiles} {
		if ts := s.cache.LastSyncedAt(ctx, kind); ts.IsSome() {
			status.LastSynced[string(kind)] = ts.UnwrapOr(time.Time{})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write status response.")
	}
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
