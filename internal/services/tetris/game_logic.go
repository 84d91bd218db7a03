package tetris

import (
	"errors"
	"fmt"
)

// プレイヤーの操作を表すアクション名です。WebSocketやHTTPからこの文字列で送られてきます。
const (
	ActionMoveLeft    = "move_left"
	ActionMoveRight   = "move_right"
	ActionSoftDrop    = "soft_drop"
	ActionHardDrop    = "hard_drop"
	ActionRotate      = "rotate"
	ActionRotateRight = "rotate_right"
	ActionRotateLeft  = "rotate_left"
	ActionHold        = "hold"
	ActionPause       = "pause"
	ActionStart       = "start"
	ActionMenu        = "menu"
)

// ErrUnknownAction は未知のアクション名を受け取ったときのエラーです。
var ErrUnknownAction = errors.New("unknown action")

// ApplyPlayerInput はプレイヤーの入力（アクション）をエンジンの操作に変換して適用します。
//
// Parameters:
//   engine : 操作対象のエンジン
//   action : プレイヤーが実行したアクション（例: "move_left", "rotate"）
// Returns:
//   bool : ゲーム状態が実際に変更された場合はtrue、変更されなかった場合はfalse
//   error: アクション名が不明な場合は ErrUnknownAction
func ApplyPlayerInput(engine *Engine, action string) (bool, error) {
	switch action {
	case ActionMoveLeft:
		return engine.MoveLeft(), nil
	case ActionMoveRight:
		return engine.MoveRight(), nil
	case ActionSoftDrop:
		return engine.SoftDrop(), nil
	case ActionHardDrop:
		return engine.HardDrop(), nil
	case ActionRotate, ActionRotateRight:
		return engine.RotateClockwise(), nil
	case ActionRotateLeft:
		return engine.RotateCounterClockwise(), nil
	case ActionHold:
		return engine.Hold(), nil
	case ActionPause:
		return engine.TogglePause(), nil
	case ActionStart:
		engine.Start()
		return true, nil
	case ActionMenu:
		engine.ResetToMenu()
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}
