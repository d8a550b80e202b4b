package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"turngames/internal/game"
	"turngames/internal/session"
)

// WSMessage is the JSON envelope for WebSocket messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	PlayerID *game.PlayerID `json:"playerId"`
}

type actionPayload struct {
	Action json.RawMessage `json:"action"`
}

// relayPayload carries one accepted action to every peer. Seq is the
// action's position in the log; ID lets clients drop duplicates.
type relayPayload struct {
	ID     string          `json:"id"`
	Seq    int             `json:"seq"`
	Player game.PlayerID   `json:"player"`
	Action json.RawMessage `json:"action"`
}

type statePayload struct {
	State         json.RawMessage `json:"state,omitempty"`
	CurrentPlayer *game.PlayerID  `json:"currentPlayer,omitempty"`
	Finished      bool            `json:"finished"`
	SessionInfo   session.Info    `json:"sessionInfo"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		s.log.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	// First message must be a join
	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "join" {
		sendWSError(ctx, conn, "first message must be a join")
		return
	}
	var join joinPayload
	if err := json.Unmarshal(msg.Payload, &join); err != nil || join.PlayerID == nil {
		sendWSError(ctx, conn, "invalid join payload")
		return
	}

	playerID := *join.PlayerID
	log := s.log.With(zap.String("session", code), zap.Uint32("player", uint32(playerID)))
	send := make(chan []byte, 64)

	// Try to reconnect existing player, or add new one
	if !sess.ConnectPlayer(playerID, send) {
		if err := sess.AddPlayer(playerID); err != nil {
			sendWSError(ctx, conn, err.Error())
			return
		}
		sess.ConnectPlayer(playerID, send)
		if err := s.manager.SaveSession(sess); err != nil {
			log.Error("save session", zap.Error(err))
		}
	}
	log.Debug("player joined")

	// Notify all players about the roster change
	s.broadcastState(sess)

	// Writer goroutine: drains send until the handler returns
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-send:
				if !ok {
					return
				}
				if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop: handle incoming messages
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: "invalid message"})
			continue
		}
		s.handleMessage(sess, playerID, send, msg)
	}

	// A lobby player frees the seat; a seated player may reconnect
	if !sess.Leave(playerID, send) {
		log.Info("player disconnected")
		return
	}
	log.Info("player left lobby")
	if err := s.manager.SaveSession(sess); err != nil {
		log.Error("save session", zap.Error(err))
	}
	s.broadcastState(sess)
}

func (s *Server) handleMessage(sess *session.Session, playerID game.PlayerID, send chan []byte, msg WSMessage) {
	switch msg.Type {
	case "action":
		var ap actionPayload
		if err := json.Unmarshal(msg.Payload, &ap); err != nil || len(ap.Action) == 0 {
			sendWSMsg(send, "error", errorPayload{Message: "invalid action payload"})
			return
		}
		applied, err := s.manager.Apply(sess, playerID, ap.Action)
		if err != nil {
			if !errors.Is(err, game.ErrInvalidAction) && !errors.Is(err, session.ErrNotPlaying) {
				s.log.Error("apply action", zap.String("session", sess.Code), zap.Error(err))
			}
			sendWSMsg(send, "error", errorPayload{Message: err.Error()})
			return
		}
		s.relayAction(sess, applied)
		s.broadcastState(sess)

	case "start":
		if sess.Info().HostID != playerID {
			sendWSMsg(send, "error", errorPayload{Message: "only the host can start"})
			return
		}
		if err := sess.Start(); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: err.Error()})
			return
		}
		if err := s.manager.SaveSession(sess); err != nil {
			s.log.Error("save session", zap.String("session", sess.Code), zap.Error(err))
		}
		s.broadcastState(sess)

	default:
		sendWSMsg(send, "error", errorPayload{Message: "unknown message type: " + msg.Type})
	}
}

// relayAction forwards an accepted action, encoded, to every player.
func (s *Server) relayAction(sess *session.Session, a session.Applied) {
	msg, err := encodeWSMsg("action", relayPayload{
		ID:     uuid.NewString(),
		Seq:    a.Seq,
		Player: a.Player,
		Action: json.RawMessage(a.Action),
	})
	if err != nil {
		s.log.Error("encode relay", zap.String("session", sess.Code), zap.Error(err))
		return
	}
	sess.Broadcast(msg)
}

func (s *Server) broadcastState(sess *session.Session) {
	sess.RLock()
	info := sess.InfoLocked()
	match := sess.Match
	sp := statePayload{SessionInfo: info}
	if match != nil {
		state, err := match.State()
		if err != nil {
			s.log.Error("encode state", zap.String("session", sess.Code), zap.Error(err))
		}
		cur := match.CurrentPlayer()
		sp.State = state
		sp.CurrentPlayer = &cur
		sp.Finished = match.IsFinished()
	}
	sess.RUnlock()

	msg, err := encodeWSMsg("state", sp)
	if err != nil {
		s.log.Error("encode state message", zap.String("session", sess.Code), zap.Error(err))
		return
	}
	sess.Broadcast(msg)
}

func encodeWSMsg(msgType string, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, Payload: p})
}

func sendWSMsg(send chan []byte, msgType string, payload any) {
	msg, err := encodeWSMsg(msgType, payload)
	if err != nil {
		return
	}
	select {
	case send <- msg:
	default:
	}
}

func sendWSError(ctx context.Context, conn *websocket.Conn, message string) {
	msg, _ := encodeWSMsg("error", errorPayload{Message: message})
	conn.Write(ctx, websocket.MessageText, msg)
}
