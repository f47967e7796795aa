package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tunelink/internal/domain"
)

// Machine-readable error codes on the network surface. Clients must be able
// to tell "bad token" from "server down", so rejections are explicit frames
// and responses, never silent drops.
const (
	codePairingClosed  = "PAIRING_CLOSED"
	codeInvalidToken   = "INVALID_TOKEN"
	codeUnknownCommand = "UNKNOWN_COMMAND"
	codeBadRequest     = "BAD_REQUEST"
)

// Gate is the pairing window surface the server needs
type Gate interface {
	IsOpen() bool
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type issueRequest struct {
	AppName string `json:"appName"`
}

type issueResponse struct {
	TokenID string `json:"tokenId"`
}

type commandFrame struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Server is the companion gateway: token issuance over HTTP, authenticated
// sessions over WebSocket. Sessions receive a state snapshot on every hub
// fan-out and may submit remote-control commands.
type Server struct {
	logger   *zap.Logger
	addr     string
	gate     Gate
	tokens   *TokenStore
	states   domain.StateSource
	renderer domain.Renderer

	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
	sessions map[*session]struct{}
}

// NewServer creates a gateway bound to addr once enabled
func NewServer(
	logger *zap.Logger,
	addr string,
	gate Gate,
	tokens *TokenStore,
	states domain.StateSource,
	renderer domain.Renderer,
) *Server {
	return &Server{
		logger:   logger,
		addr:     addr,
		gate:     gate,
		tokens:   tokens,
		states:   states,
		renderer: renderer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
}

// Enable starts listening. Enabling a running server is a no-op.
func (s *Server) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/token", s.handleIssueToken)
	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("GET /api/v1/ws", s.handleSession)

	s.listener = listener
	s.httpSrv = &http.Server{Handler: mux}

	go func(srv *http.Server, ln net.Listener) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Gateway serve failed", zap.Error(err))
		}
	}(s.httpSrv, listener)

	s.logger.Info("Companion gateway listening",
		zap.String("addr", listener.Addr().String()))
	return nil
}

// Disable stops listening and closes every open session
func (s *Server) Disable() {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return
	}

	srv := s.httpSrv
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.listener = nil
	s.httpSrv = nil
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("Gateway shutdown incomplete", zap.Error(err))
	}
	s.logger.Info("Companion gateway stopped")
}

// Addr returns the bound address, empty when disabled
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// handleIssueToken mints a token for a companion client. Reachable only
// while the pairing window is open; otherwise any local process could let
// itself in.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if !s.gate.IsOpen() {
		writeError(w, http.StatusForbidden, "pairing window is closed", codePairingClosed)
		return
	}

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AppName == "" {
		writeError(w, http.StatusBadRequest, "appName is required", codeBadRequest)
		return
	}

	token, err := s.tokens.Issue(r.Context(), req.AppName)
	if err != nil {
		s.logger.Error("Token issuance failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not issue token", codeBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(issueResponse{TokenID: token.ID})
}

// handleState serves a one-shot snapshot to an authenticated client
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !s.tokens.Validate(bearerToken(r)) {
		writeError(w, http.StatusUnauthorized, "invalid or revoked token", codeInvalidToken)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.states.Snapshot())
}

// handleSession upgrades an authenticated client to a push session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !s.tokens.Validate(bearerToken(r)) {
		writeError(w, http.StatusUnauthorized, "invalid or revoked token", codeInvalidToken)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	sess := newSession(s, conn, bearerToken(r))

	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	sess.run()
}

func (s *Server) dropSession(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

func bearerToken(r *http.Request) string {
	if bearer := r.Header.Get("Authorization"); bearer != "" {
		const prefix = "Bearer "
		if len(bearer) > len(prefix) && bearer[:len(prefix)] == prefix {
			return bearer[len(prefix):]
		}
		return ""
	}
	// Browser WebSocket clients cannot set headers
	return r.URL.Query().Get("token")
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}
