package tetris

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/protocol"
)

func newTestSessionManager(t *testing.T) (*SessionManager, map[string]*stubStore) {
	t.Helper()
	stores := make(map[string]*stubStore)
	sm := NewSessionManager(func(userID string) HighScoreStore {
		s := &stubStore{}
		stores[userID] = s
		return s
	}, newManualClock())
	t.Cleanup(sm.Shutdown)
	return sm, stores
}

func TestSessionManager_CreateSessionStartsGame(t *testing.T) {
	sm, stores := newTestSessionManager(t)

	id, err := sm.CreateSession("user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, stores, "user-1")

	session, err := sm.GetGameSession(id)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, PhasePlaying, session.Engine.State().Phase)
	assert.Equal(t, 1, sm.SessionCount())
}

func TestSessionManager_CreateSessionRequiresUser(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	_, err := sm.CreateSession("")
	assert.Error(t, err)
}

func TestSessionManager_ApplyAction(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	id, err := sm.CreateSession("user-1")
	require.NoError(t, err)

	applied, state, err := sm.ApplyAction(id, "user-1", "soft_drop")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, SoftDropPoints, state.Score)

	_, _, err = sm.ApplyAction(id, "user-2", "soft_drop")
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	_, _, err = sm.ApplyAction("missing", "user-1", "soft_drop")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, _, err = sm.ApplyAction(id, "user-1", "explode")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestSessionManager_EndGameSession(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	id, err := sm.CreateSession("user-1")
	require.NoError(t, err)
	session, err := sm.GetGameSession(id)
	require.NoError(t, err)

	require.NoError(t, sm.EndGameSession(id))
	assert.Equal(t, PhaseStart, session.Engine.State().Phase, "終了したセッションのエンジンは止まっている")
	assert.Equal(t, 0, sm.SessionCount())

	_, err = sm.GetGameSession(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, sm.EndGameSession(id), ErrSessionNotFound)
}

func TestNewStateMessage(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.Start()

	msg := NewStateMessage(e.State())
	require.NotNil(t, msg.GhostPosition)
	assert.Equal(t, e.State().CurrentPiece.Col, msg.GhostPosition.Col)
	assert.Equal(t, e.State().Preview(), msg.NextPieces)
	assert.Len(t, msg.NextPieces, PreviewSize)

	b, err := encodeState(e.State())
	require.NoError(t, err)
	env, err := protocol.DecodeEnvelope(b)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgState, env.T)

	decoded, err := protocol.DecodePayload[map[string]any](env)
	require.NoError(t, err)
	assert.Equal(t, "playing", decoded["phase"])
	assert.Contains(t, decoded, "ghost")
}

func TestSessionManager_ReapsIdleSessionsWithoutClient(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	idle, err := sm.CreateSession("user-1")
	require.NoError(t, err)
	fresh, err := sm.CreateSession("user-2")
	require.NoError(t, err)

	session, err := sm.GetGameSession(idle)
	require.NoError(t, err)
	sm.mu.Lock()
	session.lastActivity = time.Now().Add(-sessionIdleTimeout - time.Minute)
	sm.mu.Unlock()

	sm.reapIdleSessions(time.Now())

	_, err = sm.GetGameSession(idle)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = sm.GetGameSession(fresh)
	assert.NoError(t, err)
}

func newBareClient(sessionID, userID string) *Client {
	return &Client{UserID: userID, SessionID: sessionID, Send: make(chan []byte, 16)}
}

func TestSessionManager_DisconnectPausesGame(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	id, err := sm.CreateSession("user-1")
	require.NoError(t, err)
	session, err := sm.GetGameSession(id)
	require.NoError(t, err)

	client := newBareClient(id, "user-1")
	sm.register <- client

	// 登録直後に現在の状態が送られる
	select {
	case msg := <-client.Send:
		env, err := protocol.DecodeEnvelope(msg)
		require.NoError(t, err)
		assert.Equal(t, protocol.MsgState, env.T)
	case <-time.After(time.Second):
		t.Fatal("登録時の状態が送られなかった")
	}

	sm.unregister <- client
	assert.Eventually(t, func() bool {
		return session.Engine.State().Phase == PhasePaused
	}, time.Second, 10*time.Millisecond)
}

func TestSessionManager_ReplacedClientDoesNotPause(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	id, err := sm.CreateSession("user-1")
	require.NoError(t, err)
	session, err := sm.GetGameSession(id)
	require.NoError(t, err)

	first := newBareClient(id, "user-1")
	second := newBareClient(id, "user-1")
	sm.register <- first
	sm.register <- second
	sm.unregister <- first

	// 後続のメッセージがループを一周するまで待つ
	sm.register <- second
	assert.Equal(t, PhasePlaying, session.Engine.State().Phase)

	sm.mu.RLock()
	current := sm.clients[id]
	sm.mu.RUnlock()
	assert.Same(t, second, current)
}

func TestSessionManager_UnregisterBeforeRegisterIsNotConnected(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	id, err := sm.CreateSession("user-1")
	require.NoError(t, err)
	session, err := sm.GetGameSession(id)
	require.NoError(t, err)

	// 切断の通知が登録より先に届いた場合
	client := newBareClient(id, "user-1")
	sm.unregister <- client
	sm.register <- client
	// ループを一周させて register の処理を終わらせる
	sm.unregister <- newBareClient(id, "user-1")

	sm.mu.RLock()
	_, connected := sm.clients[id]
	sm.mu.RUnlock()
	assert.False(t, connected, "閉じたクライアントは登録されない")

	sm.mu.Lock()
	session.lastActivity = time.Now().Add(-2 * sessionIdleTimeout)
	sm.mu.Unlock()
	sm.reapIdleSessions(time.Now())

	_, err = sm.GetGameSession(id)
	assert.ErrorIs(t, err, ErrSessionNotFound, "未接続の放置セッションは片付けられる")
}

// dialPair はテスト用のWebSocket接続の組 (サーバー側, クライアント側) を作ります。
func dialPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	serverConns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	clientConn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn := <-serverConns:
		t.Cleanup(func() { serverConn.Close() })
		return serverConn, clientConn
	case <-time.After(5 * time.Second):
		t.Fatal("サーバー側の接続が得られなかった")
		return nil, nil
	}
}

func TestSessionManager_RegisterAfterShutdownLeavesConnToCaller(t *testing.T) {
	// メインループが動いていない、停止済みのマネージャー
	sm := &SessionManager{
		sessions: map[string]*GameSession{"s1": {ID: "s1", UserID: "user-1"}},
		clients:  make(map[string]*Client),
		register: make(chan *Client),
		quit:     make(chan struct{}),
	}
	close(sm.quit)

	serverConn, clientConn := dialPair(t)
	err := sm.RegisterClient("s1", "user-1", serverConn)
	require.ErrorIs(t, err, ErrManagerShutDown)

	// ポンプが動いていないので、呼び出し側がそのまま書き込める
	require.NoError(t, serverConn.WriteMessage(websocket.TextMessage, protocol.EncodeError("bye")))
	clientConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := clientConn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.DecodeEnvelope(msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgError, env.T)
}

func TestSessionManager_RegisterClientStartsPumps(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	id, err := sm.CreateSession("user-1")
	require.NoError(t, err)

	serverConn, clientConn := dialPair(t)
	require.NoError(t, sm.RegisterClient(id, "user-1", serverConn))

	clientConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := clientConn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.DecodeEnvelope(msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgState, env.T)
	state, err := protocol.DecodePayload[StateMessage](env)
	require.NoError(t, err)
	assert.Len(t, state.NextPieces, PreviewSize, "クライアントにはプレビュー分だけ送る")
}
