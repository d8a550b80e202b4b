package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"turngames/internal/game"
	"turngames/internal/game/tictactoe"
	"turngames/internal/session"
	"turngames/internal/storage"
)

const (
	alice game.PlayerID = 1
	bob   game.PlayerID = 2
	carol game.PlayerID = 3
)

// --- Test environment ---

type testEnv struct {
	ts    *httptest.Server
	mgr   *session.Manager
	reg   *game.Registry
	store *storage.Store
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return newTestEnv(t, store)
}

// newTestEnv starts a server over an existing store, restoring its sessions.
func newTestEnv(t *testing.T, store *storage.Store) *testEnv {
	t.Helper()
	// Handlers may log after the test returns, so no zaptest here.
	log := zap.NewNop()

	reg := game.NewRegistry()
	reg.Register(tictactoe.TicTacToe{})
	mgr := session.NewManager(reg, store, log)
	if err := mgr.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}

	webFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html><body>test</body></html>")},
	}
	srv := New(reg, mgr, webFS, log)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, mgr: mgr, reg: reg, store: store}
}

func timeoutCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// --- REST API helpers ---

func createSessionViaAPI(t *testing.T, ts *httptest.Server, gameType string, playerID game.PlayerID) string {
	t.Helper()
	body := fmt.Sprintf(`{"gameType":%q,"playerId":%d}`, gameType, playerID)
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var result createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result.Code
}

func getLogViaAPI(t *testing.T, ts *httptest.Server, code string) logResponse {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/sessions/" + code + "/log")
	if err != nil {
		t.Fatalf("get log: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var lr logResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	return lr
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server, code string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/sessions/" + code + "/ws"
}

// wsConnect dials a WebSocket, sends a join message, and returns the connection.
// The caller is responsible for closing the connection.
func wsConnect(t *testing.T, ts *httptest.Server, code string, playerID game.PlayerID) *websocket.Conn {
	t.Helper()
	ctx, cancel := timeoutCtx(t)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, code), nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	wsSend(ctx, t, conn, joinMsg(playerID))
	return conn
}

// wsSend marshals and writes a pre-built WSMessage, calling t.Fatal on error.
func wsSend(ctx context.Context, t *testing.T, conn *websocket.Conn, msg WSMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal ws message: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("ws write: %v", err)
	}
}

// wsRead reads and unmarshals a WebSocket message, calling t.Fatal on error.
func wsRead(ctx context.Context, t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal ws message: %v", err)
	}
	return msg
}

func newMsg(t *testing.T, msgType string, payload any) WSMessage {
	t.Helper()
	p, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return WSMessage{Type: msgType, Payload: p}
}

func joinMsg(playerID game.PlayerID) WSMessage {
	payload, _ := json.Marshal(joinPayload{PlayerID: &playerID})
	return WSMessage{Type: "join", Payload: payload}
}

// moveMsg builds an action message for a tic-tac-toe move.
func moveMsg(t *testing.T, player game.PlayerID, index int) WSMessage {
	t.Helper()
	action, err := json.Marshal(tictactoe.Move{Player: player, Index: index})
	if err != nil {
		t.Fatalf("marshal move: %v", err)
	}
	return newMsg(t, "action", actionPayload{Action: action})
}

// readTyped reads one message and fails unless it has type msgType.
func readTyped(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, v any) {
	t.Helper()
	msg := wsRead(ctx, t, conn)
	if msg.Type != msgType {
		t.Fatalf("expected %s message, got %q: %s", msgType, msg.Type, string(msg.Payload))
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		t.Fatalf("unmarshal %s payload: %v", msgType, err)
	}
}

func readState(t *testing.T, ctx context.Context, conn *websocket.Conn) statePayload {
	t.Helper()
	var sp statePayload
	readTyped(t, ctx, conn, "state", &sp)
	return sp
}

func readRelay(t *testing.T, ctx context.Context, conn *websocket.Conn) relayPayload {
	t.Helper()
	var rp relayPayload
	readTyped(t, ctx, conn, "action", &rp)
	return rp
}

func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) string {
	t.Helper()
	var ep errorPayload
	readTyped(t, ctx, conn, "error", &ep)
	return ep.Message
}

func board(t *testing.T, sp statePayload) tictactoe.Board {
	t.Helper()
	var b tictactoe.Board
	if err := json.Unmarshal(sp.State, &b); err != nil {
		t.Fatalf("unmarshal board: %v", err)
	}
	return b
}

// startGame creates a session for alice and bob over the API and websocket,
// starts it, and drains every message up to the first playing state.
func startGame(t *testing.T, env *testEnv) (code string, aliceConn, bobConn *websocket.Conn) {
	t.Helper()
	ctx, cancel := timeoutCtx(t)
	defer cancel()

	code = createSessionViaAPI(t, env.ts, "tictactoe", alice)
	aliceConn = wsConnect(t, env.ts, code, alice)
	t.Cleanup(func() { aliceConn.Close(websocket.StatusNormalClosure, "") })
	readState(t, ctx, aliceConn)

	bobConn = wsConnect(t, env.ts, code, bob)
	t.Cleanup(func() { bobConn.Close(websocket.StatusNormalClosure, "") })
	readState(t, ctx, aliceConn)
	readState(t, ctx, bobConn)

	wsSend(ctx, t, aliceConn, WSMessage{Type: "start", Payload: json.RawMessage(`{}`)})
	readState(t, ctx, aliceConn)
	readState(t, ctx, bobConn)
	return code, aliceConn, bobConn
}
