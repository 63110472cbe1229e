// Package server wires the relay onto its HTTP surface: the websocket
// ingress endpoint and the health endpoint.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peppasd/fog-relay/internal/relay"
	"github.com/peppasd/fog-relay/internal/storage"
)

// Server holds the shared collaborators handed to each session.
type Server struct {
	store         storage.Store
	ingest        *relay.IngestPool
	log           *slog.Logger
	writeInterval time.Duration
	upgrader      websocket.Upgrader
}

// New creates a server. writeInterval is the session writers' tick
// period.
func New(store storage.Store, ingest *relay.IngestPool, log *slog.Logger, writeInterval time.Duration) *Server {
	return &Server{
		store:         store,
		ingest:        ingest,
		log:           log,
		writeInterval: writeInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the HTTP mux. Sessions spawned from /ws inherit ctx, so
// cancelling it winds down every active session.
func (s *Server) Routes(ctx context.Context) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})
	return mux
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.log.Info("new websocket connection", "remote", r.RemoteAddr)

	sess := relay.NewSession(conn, s.store, s.ingest, s.log, s.writeInterval)
	if err := sess.Run(ctx); err != nil {
		s.log.Warn("session rejected", "remote", r.RemoteAddr, "error", err)
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Readings    int    `json:"readings"`
	Queued      int    `json:"queued"`
	Delivered   int    `json:"delivered"`
}

// handleHealth reports record counts from the store. A storage failure
// degrades the response instead of failing the request.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	resp := healthResponse{Status: "ok"}

	var err error
	if resp.Connections, err = s.store.ConnectionCount(ctx); err == nil {
		if resp.Readings, err = s.store.ReadingCount(ctx); err == nil {
			if resp.Queued, err = s.store.QueuedMessageCount(ctx); err == nil {
				resp.Delivered, err = s.store.DeliveredCount(ctx)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		s.log.Error("health check degraded", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "degraded"})
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}
