package tetris

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket" // WebSocketライブラリのインポート

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/protocol"
)

var (
	// ErrSessionNotFound は指定されたセッションが存在しないときのエラーです。
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotSessionOwner はセッションの持ち主以外が操作しようとしたときのエラーです。
	ErrNotSessionOwner = errors.New("session belongs to another user")
	// ErrManagerShutDown は SessionManager の停止後に接続を登録しようとしたときのエラーです。
	ErrManagerShutDown = errors.New("session manager is shut down")
)

const (
	sessionIdleTimeout = 30 * time.Minute // クライアント未接続のまま放置されたセッションを片付けるまでの時間
	reapInterval       = time.Minute
	pingInterval       = 54 * time.Second
	pongWait           = 60 * time.Second
	writeWait          = 10 * time.Second
	maxMessageSize     = 1024
)

// Client はWebSocket接続を持つ単一のクライアントを表します。
type Client struct {
	UserID    string          // このクライアントに紐づくユーザーのID
	SessionID string          // このクライアントが操作しているセッションのID
	Conn      *websocket.Conn // クライアントとの実際のWebSocketコネクション
	Send      chan []byte     // クライアントへメッセージを送信するためのバッファ付きチャネル
	closed    bool            // チャネルが閉じられたかどうかのフラグ
	mu        sync.Mutex      // closedフラグ保護用
}

// SafeSend は安全にチャネルにメッセージを送信します（closedチェック付き）
func (c *Client) SafeSend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.Send <- message:
		return true
	default:
		return false // チャネルがフル
	}
}

// SafeClose は安全にチャネルを閉じます
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// GameSession は1人のプレイヤーが遊んでいる1つのゲームです。
type GameSession struct {
	ID           string
	UserID       string
	Engine       *Engine
	CreatedAt    time.Time
	lastActivity time.Time
	unsubscribe  func()
}

// PlayerInputEvent はクライアントから届いた操作です。
type PlayerInputEvent struct {
	SessionID string
	UserID    string
	Action    string
}

// outboundMessage はセッションに接続しているクライアントへ送るメッセージです。
type outboundMessage struct {
	SessionID string
	Payload   []byte
}

// HighScoreStoreFactory はユーザーごとのハイスコアストアを作る関数です。
type HighScoreStoreFactory func(userID string) HighScoreStore

// SessionManager はゲームセッションとWebSocketクライアント接続の全体を管理します。
// これはアプリケーション内でシングルトンとして動作することが想定されます。
type SessionManager struct {
	sessions    map[string]*GameSession // sessionID -> GameSession
	clients     map[string]*Client      // sessionID -> Client (1セッションにつき1接続)
	register    chan *Client
	unregister  chan *Client
	inputEvents chan PlayerInputEvent
	outbound    chan outboundMessage
	quit        chan struct{}
	quitOnce    sync.Once
	mu          sync.RWMutex // sessions と clients マップへのアクセスを保護するためのRWMutex
	newStore    HighScoreStoreFactory
	clock       Clock
}

// NewSessionManager は新しい SessionManager インスタンスを作成し、そのメインイベントループをバックグラウンドで開始します。
//
// Parameters:
//   newStore : ユーザーごとのハイスコアストアを作る関数 (nil の場合は永続化しない)
//   clock    : エンジンが使う時計 (nil の場合は RealClock)
// Returns:
//   *SessionManager: 初期化されたセッションマネージャーのポインタ
func NewSessionManager(newStore HighScoreStoreFactory, clock Clock) *SessionManager {
	sm := &SessionManager{
		sessions:    make(map[string]*GameSession),
		clients:     make(map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inputEvents: make(chan PlayerInputEvent, 512),
		outbound:    make(chan outboundMessage, 512),
		quit:        make(chan struct{}),
		newStore:    newStore,
		clock:       clock,
	}
	go sm.Run()
	return sm
}

// Run は SessionManager のメインイベントループです。
// クライアントの登録/解除、プレイヤー入力の処理、エンジンからの通知の配送、
// 放置されたセッションの片付けを行います。
func (sm *SessionManager) Run() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-sm.register:
			if client.isClosed() {
				// 登録より先に切断が処理された接続
				log.Printf("[SessionManager] Ignoring closed client %s (Session: %s)", client.UserID, client.SessionID)
				continue
			}
			sm.mu.Lock()
			if existing, ok := sm.clients[client.SessionID]; ok && existing != client {
				log.Printf("[SessionManager] Replacing existing connection for session %s", client.SessionID)
				existing.SafeClose()
			}
			sm.clients[client.SessionID] = client
			session, ok := sm.sessions[client.SessionID]
			sm.mu.Unlock()
			log.Printf("[SessionManager] Client registered: %s (Session: %s)", client.UserID, client.SessionID)

			if ok {
				sm.touch(session)
				sm.sendState(client, session.Engine.State())
			}

		case client := <-sm.unregister:
			sm.mu.Lock()
			registered, ok := sm.clients[client.SessionID]
			current := ok && registered == client
			if current {
				delete(sm.clients, client.SessionID)
			}
			session, sessionOk := sm.sessions[client.SessionID]
			sm.mu.Unlock()
			client.SafeClose()
			log.Printf("[SessionManager] Client unregistered: %s (Session: %s)", client.UserID, client.SessionID)

			// 切断中にピースが落ち続けないよう、プレイ中なら一時停止しておく
			if current && sessionOk && session.Engine.State().Phase == PhasePlaying {
				session.Engine.TogglePause()
			}

		case event := <-sm.inputEvents:
			_, _, err := sm.ApplyAction(event.SessionID, event.UserID, event.Action)
			if err != nil {
				log.Printf("[SessionManager] Rejected input %q for session %s from user %s: %v", event.Action, event.SessionID, event.UserID, err)
				sm.mu.RLock()
				client, ok := sm.clients[event.SessionID]
				sm.mu.RUnlock()
				if ok {
					client.SafeSend(protocol.EncodeError(err.Error()))
				}
			}

		case msg := <-sm.outbound:
			sm.mu.RLock()
			client, ok := sm.clients[msg.SessionID]
			sm.mu.RUnlock()
			if ok && !client.SafeSend(msg.Payload) {
				log.Printf("[SessionManager] Failed to send to client %s (channel closed or full)", client.UserID)
			}

		case <-ticker.C:
			sm.reapIdleSessions(time.Now())

		case <-sm.quit:
			log.Printf("[SessionManager] Shutdown signal received, stopping main loop")
			return
		}
	}
}

// CreateSession は新しいゲームセッションを作成し、ゲームを開始します。
//
// Parameters:
//   userID : セッションを所有するユーザーのID
// Returns:
//   string: 作成されたセッションのID
//   error : エラーが発生した場合
func (sm *SessionManager) CreateSession(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	var store HighScoreStore
	if sm.newStore != nil {
		store = sm.newStore(userID)
	}
	engine := NewEngine(EngineConfig{HighScores: store, Clock: sm.clock})

	sessionID := uuid.New().String()
	now := time.Now()
	session := &GameSession{
		ID:           sessionID,
		UserID:       userID,
		Engine:       engine,
		CreatedAt:    now,
		lastActivity: now,
	}
	session.unsubscribe = engine.Subscribe(func(ev Event) {
		sm.forwardEvent(sessionID, engine, ev)
	})

	sm.mu.Lock()
	sm.sessions[sessionID] = session
	sm.mu.Unlock()

	engine.Start()
	log.Printf("[SessionManager] Created new game session: %s for user %s", sessionID, userID)
	return sessionID, nil
}

// GetGameSession は指定されたIDのゲームセッションを取得します。
func (sm *SessionManager) GetGameSession(sessionID string) (*GameSession, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session, nil
}

// ApplyAction はセッションのエンジンにアクションを適用し、適用後の状態を返します。
//
// Parameters:
//   sessionID : 対象のセッションID
//   userID    : 操作したユーザーのID (セッションの所有者である必要があります)
//   action    : アクション名 (例: "move_left")
// Returns:
//   bool     : 状態が変化したかどうか
//   GameState: 適用後の状態
//   error    : セッションが存在しない、所有者でない、アクションが不明な場合
func (sm *SessionManager) ApplyAction(sessionID, userID, action string) (bool, GameState, error) {
	session, err := sm.GetGameSession(sessionID)
	if err != nil {
		return false, GameState{}, err
	}
	if session.UserID != userID {
		return false, GameState{}, ErrNotSessionOwner
	}
	sm.touch(session)

	applied, err := ApplyPlayerInput(session.Engine, action)
	if err != nil {
		return false, session.Engine.State(), err
	}
	return applied, session.Engine.State(), nil
}

// RegisterClient はWebSocket接続をセッションに結び付け、読み書きのゴルーチンを開始します。
// エラーを返した場合、コネクションには一切触れていないので、閉じるのは呼び出し側の責任です。
func (sm *SessionManager) RegisterClient(sessionID, userID string, conn *websocket.Conn) error {
	session, err := sm.GetGameSession(sessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return ErrNotSessionOwner
	}

	client := &Client{
		UserID:    userID,
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
	}

	// 登録がメインループに届いてからポンプを起動する。
	// 先に起動すると、即座に切断された接続の unregister が register を追い越してしまう。
	select {
	case sm.register <- client:
	case <-sm.quit:
		return ErrManagerShutDown
	}

	go sm.readPump(client)
	go client.writePump()
	return nil
}

// EndGameSession はゲームセッションを終了させ、タイマーを止めてクライアントを切断します。
func (sm *SessionManager) EndGameSession(sessionID string) error {
	sm.mu.Lock()
	session, ok := sm.sessions[sessionID]
	if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(sm.sessions, sessionID)
	client, hasClient := sm.clients[sessionID]
	delete(sm.clients, sessionID)
	sm.mu.Unlock()

	session.unsubscribe()
	session.Engine.ResetToMenu()
	if hasClient {
		client.SafeClose()
	}
	log.Printf("[SessionManager] Game session %s ended.", sessionID)
	return nil
}

// SessionCount は現在のセッション数を返します。
func (sm *SessionManager) SessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Shutdown はSessionManagerを安全にシャットダウンします
func (sm *SessionManager) Shutdown() {
	log.Printf("[SessionManager] Shutting down...")
	sm.quitOnce.Do(func() { close(sm.quit) })

	sm.mu.RLock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sm.mu.RUnlock()

	for _, id := range ids {
		if err := sm.EndGameSession(id); err != nil {
			log.Printf("[SessionManager] Failed to end session %s during shutdown: %v", id, err)
		}
	}
	log.Printf("[SessionManager] Shutdown complete")
}

// forwardEvent はエンジンの通知をWebSocket用のメッセージに変換して配送キューに入れます。
// 状態変化は最新のスナップショットとして、それ以外はイベントとして送ります。
func (sm *SessionManager) forwardEvent(sessionID string, engine *Engine, ev Event) {
	var (
		payload []byte
		err     error
	)
	if ev.Type == EventStateChanged {
		payload, err = encodeState(engine.State())
	} else {
		payload, err = protocol.Encode(protocol.MsgEvent, ev)
	}
	if err != nil {
		log.Printf("[SessionManager] Failed to encode %s for session %s: %v", ev.Type, sessionID, err)
		return
	}

	select {
	case sm.outbound <- outboundMessage{SessionID: sessionID, Payload: payload}:
	case <-sm.quit:
	default:
		log.Printf("[SessionManager] Outbound channel full, dropping %s for session %s", ev.Type, sessionID)
	}
}

func (sm *SessionManager) sendState(client *Client, state GameState) {
	payload, err := encodeState(state)
	if err != nil {
		log.Printf("[SessionManager] Failed to encode state for session %s: %v", client.SessionID, err)
		return
	}
	client.SafeSend(payload)
}

func (sm *SessionManager) touch(session *GameSession) {
	sm.mu.Lock()
	session.lastActivity = time.Now()
	sm.mu.Unlock()
}

// reapIdleSessions はクライアントが接続しておらず、長時間操作のないセッションを終了します。
func (sm *SessionManager) reapIdleSessions(now time.Time) {
	sm.mu.RLock()
	var idle []string
	for id, session := range sm.sessions {
		if _, connected := sm.clients[id]; connected {
			continue
		}
		if now.Sub(session.lastActivity) > sessionIdleTimeout {
			idle = append(idle, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range idle {
		log.Printf("[SessionManager] Reaping idle session %s", id)
		if err := sm.EndGameSession(id); err != nil {
			log.Printf("[SessionManager] Failed to reap session %s: %v", id, err)
		}
	}
}

// readPump はクライアントからのWebSocketメッセージを読み込み、 inputEvents チャネルに送信します。
func (sm *SessionManager) readPump(client *Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SessionManager] Panic in readPump for user %s: %v", client.UserID, r)
		}
		log.Printf("[SessionManager] Client %s disconnecting from session %s", client.UserID, client.SessionID)
		select {
		case sm.unregister <- client:
		case <-sm.quit:
			client.SafeClose()
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[SessionManager] WebSocket unexpected close error for user %s: %v", client.UserID, err)
			}
			return
		}

		env, err := protocol.DecodeEnvelope(message)
		if err != nil {
			log.Printf("[SessionManager] Failed to decode message from %s: %v", client.UserID, err)
			client.SafeSend(protocol.EncodeError(err.Error()))
			continue
		}
		if env.T != protocol.MsgInput {
			client.SafeSend(protocol.EncodeError(fmt.Sprintf("unsupported message type %q", env.T)))
			continue
		}
		input, err := protocol.DecodePayload[protocol.Input](env)
		if err != nil {
			client.SafeSend(protocol.EncodeError(err.Error()))
			continue
		}

		// UserID と SessionID は接続から決まるものを使う
		event := PlayerInputEvent{SessionID: client.SessionID, UserID: client.UserID, Action: input.Action}
		select {
		case sm.inputEvents <- event:
		default:
			log.Printf("[SessionManager] Input events channel is full, dropping message from user %s", client.UserID)
		}
	}
}

// writePump は Client の Send チャネルからのメッセージをWebSocketコネクションに書き込みます。
// クライアントごとにこのゴルーチンが動作します。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// マネージャーがチャネルを閉じた場合 (セッション終了時など)
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Client] Error writing message for user %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[Client] Error sending ping for user %s: %v", c.UserID, err)
				return
			}
		}
	}
}

// StateMessage はクライアントへ送る状態です。スナップショットにゴースト位置を加え、
// NEXT はプレビューに表示する分だけに絞ります。
type StateMessage struct {
	GameState
	NextPieces    []tetris.PieceType `json:"next_pieces"`
	GhostPosition *tetris.Position   `json:"ghost"` // ゴーストを表示しない場合は null
}

func encodeState(state GameState) ([]byte, error) {
	return protocol.Encode(protocol.MsgState, NewStateMessage(state))
}

// NewStateMessage はスナップショットからクライアント向けの状態を作ります。
func NewStateMessage(state GameState) StateMessage {
	return StateMessage{GameState: state, NextPieces: state.Preview(), GhostPosition: state.Ghost()}
}
