package server

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"turngames/internal/game"
	"turngames/internal/session"
)

// Server is the HTTP server.
type Server struct {
	mux      *http.ServeMux
	registry *game.Registry
	manager  *session.Manager
	webFS    fs.FS
	log      *zap.Logger
}

// New creates a server with all routes.
// webFS holds the static client files served at /.
func New(registry *game.Registry, manager *session.Manager, webFS fs.FS, log *zap.Logger) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		manager:  manager,
		webFS:    webFS,
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// API routes
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{code}", s.handleGetSession)
	s.mux.HandleFunc("GET /api/sessions/{code}/log", s.handleGetLog)
	s.mux.HandleFunc("GET /api/sessions/{code}/ws", s.handleWebSocket)
	s.mux.HandleFunc("POST /api/sessions/{code}/start", s.handleStartSession)

	// Static files
	s.mux.Handle("/", http.FileServer(http.FS(s.webFS)))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List())
}

type createSessionRequest struct {
	GameType string         `json:"gameType"`
	PlayerID *game.PlayerID `json:"playerId"`
}

type createSessionResponse struct {
	Code string `json:"code"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.GameType = strings.TrimSpace(req.GameType)
	if req.GameType == "" || req.PlayerID == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "gameType and playerId required"})
		return
	}

	sess, err := s.manager.Create(req.GameType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := sess.AddPlayer(*req.PlayerID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err := s.manager.SaveSession(sess); err != nil {
		s.log.Error("save session", zap.String("session", sess.Code), zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{Code: sess.Code})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

type logResponse struct {
	Code    string            `json:"code"`
	Players []game.PlayerID   `json:"players"`
	Actions []json.RawMessage `json:"actions"`
}

// handleGetLog returns the replay log of a started session.
func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	sess.RLock()
	match := sess.Match
	var (
		entries [][]byte
		err     error
	)
	if match != nil {
		entries, err = match.Log()
	}
	sess.RUnlock()
	if match == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "game not started"})
		return
	}
	if err != nil {
		s.log.Error("encode action log", zap.String("session", code), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encode action log"})
		return
	}
	resp := logResponse{
		Code:    code,
		Players: match.Players(),
		Actions: make([]json.RawMessage, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Actions = append(resp.Actions, json.RawMessage(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err := sess.Start(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.manager.SaveSession(sess); err != nil {
		s.log.Error("save session", zap.String("session", code), zap.Error(err))
	}
	// Broadcast new state to all players
	s.broadcastState(sess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
