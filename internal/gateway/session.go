package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tunelink/internal/domain"
)

const (
	sessionSendBuffer = 16
	commandTimeout    = 5 * time.Second
)

// session is one authenticated WebSocket client. Snapshots and error frames
// both travel through the outbound channel so the connection has a single
// writer.
type session struct {
	server  *Server
	conn    *websocket.Conn
	tokenID string

	outbound  chan any
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(server *Server, conn *websocket.Conn, tokenID string) *session {
	return &session{
		server:   server,
		conn:     conn,
		tokenID:  tokenID,
		outbound: make(chan any, sessionSendBuffer),
		done:     make(chan struct{}),
	}
}

// run services the session until the client disconnects, the token is
// revoked, or the gateway shuts down
func (s *session) run() {
	defer func() {
		s.close()
		s.server.dropSession(s)
	}()

	unsubscribe := s.server.states.Subscribe(func(snap domain.PlaybackState) {
		s.send(snap)
	})
	defer unsubscribe()

	go s.writePump()

	// Push the current state immediately so the client never starts blind
	s.send(s.server.states.Snapshot())

	s.readLoop()
}

func (s *session) readLoop() {
	for {
		var frame commandFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.server.logger.Debug("Session read failed", zap.Error(err))
			}
			return
		}

		// Revocation must bite on the very next command
		if !s.server.tokens.Validate(s.tokenID) {
			s.send(errorBody{Error: "token revoked", Code: codeInvalidToken})
			return
		}

		cmd := domain.RemoteCommand{Name: frame.Name, Value: frame.Value}
		if err := cmd.Validate(); err != nil {
			s.send(errorBody{Error: err.Error(), Code: codeUnknownCommand})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		err := s.server.renderer.Execute(ctx, cmd)
		cancel()
		if err != nil {
			s.server.logger.Warn("Command forwarding failed",
				zap.String("command", cmd.Name),
				zap.Error(err))
		}
	}
}

func (s *session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.outbound:
			if err := s.conn.WriteJSON(payload); err != nil {
				s.close()
				return
			}
		}
	}
}

// send queues a frame without ever blocking the hub fan-out. A slow client
// loses intermediate snapshots, never current ones that follow.
func (s *session) send(payload any) {
	select {
	case s.outbound <- payload:
	case <-s.done:
	default:
		s.server.logger.Debug("Session send buffer full, dropping frame")
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
