package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket" // WebSocketライブラリ

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/protocol"
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/services/tetris"
)

const (
	authWait        = 10 * time.Second
	bypassAuthToken = "BYPASS_AUTH"
)

// GameHandler はゲーム関連のHTTPリクエスト（セッション作成、操作、WebSocket接続）を処理します。
type GameHandler struct {
	sessionManager *tetris.SessionManager // ゲームセッションの管理サービス
	auth           middleware.Auth        // WebSocketの認証メッセージの検証に使う
	upgrader       websocket.Upgrader
}

// NewGameHandler は新しい GameHandler インスタンスを作成します。
//
// Parameters:
//   sm             : セッションマネージャーへのポインタ
//   auth           : JWTの検証設定
//   allowedOrigins : WebSocket接続を許可するOrigin ("*" ですべて許可)
// Returns:
//   *GameHandler: 新しく作成された GameHandler のポインタ
func NewGameHandler(sm *tetris.SessionManager, auth middleware.Auth, allowedOrigins []string) *GameHandler {
	return &GameHandler{
		sessionManager: sm,
		auth:           auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

// checkOrigin は Origin ヘッダーが許可リストに含まれるかを確認します。
// Origin ヘッダーのないリクエスト（ブラウザ以外）は許可します。
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		log.Printf("[GameHandler] Rejected websocket origin %q", origin)
		return false
	}
}

// writeSessionError はセッション操作のエラーをHTTPステータスに変換します。
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tetris.ErrSessionNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "指定されたゲームは見つかりませんでした")
	case errors.Is(err, tetris.ErrNotSessionOwner):
		WriteErrorResponse(w, http.StatusForbidden, "このゲームを操作する権限がありません")
	case errors.Is(err, tetris.ErrUnknownAction):
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
	default:
		WriteErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// ownedSession はURLのセッションを取得し、リクエストしたユーザーの持ち物であることを確認します。
func (h *GameHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*tetris.GameSession, string, bool) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return nil, "", false
	}
	sessionID := mux.Vars(r)["sessionID"]
	if sessionID == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "セッションIDが必要です")
		return nil, "", false
	}
	session, err := h.sessionManager.GetGameSession(sessionID)
	if err != nil {
		writeSessionError(w, err)
		return nil, "", false
	}
	if session.UserID != userID {
		writeSessionError(w, tetris.ErrNotSessionOwner)
		return nil, "", false
	}
	return session, userID, true
}

// CreateGame は新しいゲームセッションを作成し、ゲームを開始します。
// POST /api/games
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}

	sessionID, err := h.sessionManager.CreateSession(userID)
	if err != nil {
		log.Printf("[GameHandler] Failed to create session for user %s: %v", userID, err)
		WriteErrorResponse(w, http.StatusInternalServerError, "ゲームの作成に失敗しました")
		return
	}

	session, err := h.sessionManager.GetGameSession(sessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"session_id": sessionID,
		"state":      tetris.NewStateMessage(session.Engine.State()),
	})
}

// GetGame はゲームの現在のスナップショットを返します。
// GET /api/games/{sessionID}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	session, _, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	WriteJSONResponse(w, http.StatusOK, tetris.NewStateMessage(session.Engine.State()))
}

// ApplyAction は1つのアクションを適用し、適用されたかどうかと適用後の状態を返します。
// POST /api/games/{sessionID}/actions
func (h *GameHandler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	session, userID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req protocol.Input
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディのパースに失敗しました")
		return
	}
	if req.Action == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "アクションが必要です")
		return
	}

	applied, state, err := h.sessionManager.ApplyAction(session.ID, userID, req.Action)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"applied": applied,
		"state":   tetris.NewStateMessage(state),
	})
}

// EndGame はゲームセッションを終了します。
// DELETE /api/games/{sessionID}
func (h *GameHandler) EndGame(w http.ResponseWriter, r *http.Request) {
	session, _, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	if err := h.sessionManager.EndGameSession(session.ID); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authenticate は認証メッセージのトークンを検証してユーザーIDを返します。
func (h *GameHandler) authenticate(token string) (string, error) {
	if h.auth.Bypass && token == bypassAuthToken {
		return middleware.BypassUserID, nil
	}
	if h.auth.Secret == "" {
		return "", errors.New("server configuration error: JWT secret missing")
	}
	return middleware.VerifyToken(token, h.auth.Secret)
}

// rejectConn はエラーを送ってからコネクションを閉じます。
func rejectConn(conn *websocket.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.WriteMessage(websocket.TextMessage, protocol.EncodeError(message))
	conn.Close()
}

// HandleWebSocketConnection はHTTP接続をWebSocketプロトコルにアップグレードし、
// 最初の認証メッセージを検証してから、コネクションをセッションマネージャーに引き渡します。
// GET /ws/games/{sessionID}
func (h *GameHandler) HandleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	if sessionID == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "WebSocket接続にはセッションIDが必要です")
		return
	}
	if _, err := h.sessionManager.GetGameSession(sessionID); err != nil {
		writeSessionError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[GameHandler] Failed to upgrade to websocket for session %s: %v", sessionID, err)
		return // アップグレード失敗時はエラーログのみ
	}

	// 最初のメッセージは {"type":"auth","token":"..."} でなければならない
	conn.SetReadDeadline(time.Now().Add(authWait))
	var authMsg protocol.Auth
	if err := conn.ReadJSON(&authMsg); err != nil {
		log.Printf("[GameHandler] Failed to read auth message for session %s: %v", sessionID, err)
		rejectConn(conn, "Expected auth message")
		return
	}
	if authMsg.Type != "auth" {
		rejectConn(conn, "Expected auth message")
		return
	}

	userID, err := h.authenticate(authMsg.Token)
	if err != nil {
		log.Printf("[GameHandler] WebSocket auth failed for session %s: %v", sessionID, err)
		rejectConn(conn, err.Error())
		return
	}
	conn.SetReadDeadline(time.Time{})

	if err := conn.WriteJSON(map[string]string{"type": "auth_success", "message": "Authentication successful"}); err != nil {
		conn.Close()
		return
	}

	// SessionManager に新しいWebSocket接続を登録
	// 以降の読み書きは SessionManager の readPump / writePump が担当する。
	// 登録に失敗した場合はポンプが起動していないので、ここで書き込んで閉じてよい
	if err := h.sessionManager.RegisterClient(sessionID, userID, conn); err != nil {
		log.Printf("[GameHandler] Failed to register client %s to session %s: %v", userID, sessionID, err)
		rejectConn(conn, err.Error())
		return
	}
	log.Printf("[GameHandler] User %s connected to session %s", userID, sessionID)
}
