package protocol

import (
	"encoding/json"
)

// WebSocketでやり取りするメッセージの種類です。
const (
	MsgInput = "input" // クライアント -> サーバー: 操作
	MsgState = "state" // サーバー -> クライアント: 状態のスナップショット
	MsgEvent = "event" // サーバー -> クライアント: 効果音などのための通知
	MsgError = "error" // サーバー -> クライアント: エラー
)

// Envelope はすべてのメッセージを包む共通の形式です。
type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"` // 種類ごとのペイロード
}

// Input はクライアントから送られる操作です。Action は "move_left" などのアクション名です。
type Input struct {
	Action string `json:"action"`
}

// Error はクライアントへ返すエラーです。
type Error struct {
	Message string `json:"message"`
}

// Auth はWebSocket接続直後にクライアントが送る認証メッセージです。
// これだけはエンベロープに包まず {"type":"auth","token":"..."} の形で送られます。
type Auth struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}
