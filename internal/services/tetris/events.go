package tetris

import "github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"

// EventType はエンジンが通知するイベントの種類です。
// 音やハプティクスのための通知であり、状態そのものではありません。
type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventMove         EventType = "move"
	EventRotate       EventType = "rotate"
	EventSoftDrop     EventType = "soft_drop"
	EventHardDrop     EventType = "hard_drop"
	EventHold         EventType = "hold"
	EventLineClear    EventType = "line_clear"
	EventTSpin        EventType = "t_spin"
	EventCombo        EventType = "combo"
	EventLevelUp      EventType = "level_up"
	EventGameOver     EventType = "game_over"
)

// Event はエンジンから購読者へ送られる通知です。
// 種類によって使われるフィールドが異なります。
type Event struct {
	Type  EventType         `json:"type"`
	Lines int               `json:"lines,omitempty"` // line_clear: 消去ライン数
	Combo int               `json:"combo,omitempty"` // combo: 現在のコンボ数
	Level int               `json:"level,omitempty"` // level_up: 新しいレベル
	Rows  int               `json:"rows,omitempty"`  // hard_drop: 落下した段数
	Score int               `json:"score,omitempty"` // game_over: 最終スコア
	Piece *tetris.PieceType `json:"piece,omitempty"` // hold: ホールドしたピース
}

// Listener はイベントを受け取る関数です。エンジンのロック外で呼ばれます。
type Listener func(Event)
