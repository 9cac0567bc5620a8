// Package api provides the distributor's HTTP transport: newSession,
// status, add, and node removal, in the headless http.ServeMux style of
// the teacher's signaling API server.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sebas/distgrid/internal/capability"
	"github.com/sebas/distgrid/internal/distributor"
	"github.com/sebas/distgrid/internal/griderr"
)

// Server is the distributor's thin HTTP transport.
type Server struct {
	addr       string
	httpServer *http.Server
	dist       *distributor.Distributor
	startTime  time.Time
}

// NewServer builds a Server bound to addr, fronting dist.
func NewServer(addr string, dist *distributor.Distributor) *Server {
	s := &Server{addr: addr, dist: dist, startTime: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/newSession", s.handleNewSession)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/add", s.handleAdd)
	mux.HandleFunc("/node/", s.handleNodeByID)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins listening for HTTP requests in the background.
func (s *Server) Start() error {
	slog.Info("api: starting HTTP server", "addr", s.addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api: server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	var gerr *griderr.Error
	if errors.As(err, &gerr) {
		code = string(gerr.Code)
		switch gerr.Code {
		case griderr.SessionNotCreated:
			status = http.StatusConflict
		case griderr.NoSuchSession:
			status = http.StatusNotFound
		case griderr.Storage:
			status = http.StatusBadGateway
		case griderr.Config:
			status = http.StatusInternalServerError
		}
	}
	s.writeJSON(w, status, map[string]string{"error": code, "message": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ready":  s.dist.IsReady(),
		"uptime": int64(time.Since(s.startTime).Seconds()),
	})
}

type newSessionPayload struct {
	DesiredCapabilities []capability.Capabilities `json:"desiredCapabilities"`
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload newSessionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, griderr.Wrap(griderr.SessionNotCreated, "malformed request body", err))
		return
	}

	record, err := s.dist.NewSession(r.Context(), distributor.NewSessionRequest{
		CapabilitySets: payload.DesiredCapabilities,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.dist.Status())
}

type addPayload struct {
	ID          string                  `json:"id"`
	URI         string                  `json:"uri"`
	Stereotypes []capability.Stereotype `json:"stereotypes"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var payload addPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, griderr.Wrap(griderr.Config, "malformed add payload", err))
		return
	}
	s.dist.Add(payload.ID, payload.URI, payload.Stereotypes, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNodeByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/node/")
	if id == "" {
		http.Error(w, "node id required", http.StatusBadRequest)
		return
	}
	s.dist.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}
