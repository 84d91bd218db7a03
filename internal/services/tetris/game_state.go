package tetris

import (
	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"
)

// GamePhase はゲームの進行段階を表します。
type GamePhase string

const (
	PhaseStart    GamePhase = "start"    // タイトル画面。ピースもタイマーもない
	PhasePlaying  GamePhase = "playing"  // プレイ中
	PhasePaused   GamePhase = "paused"   // 一時停止中
	PhaseClearing GamePhase = "clearing" // ライン消去アニメーション中
	PhaseGameOver GamePhase = "gameOver" // ゲームオーバー
)

// ComboInactive はコンボが続いていないことを表す値です。
const ComboInactive = -1

// GameState はエンジンの状態のスナップショットです。
// すべて値のコピーなので、受け取った側で変更してもエンジンには影響しません。
type GameState struct {
	Phase              GamePhase          `json:"phase"`
	Board              tetris.Board       `json:"board"`
	CurrentPiece       *tetris.Piece      `json:"current_piece"`          // playing/paused 以外では nil
	HoldPiece          *tetris.PieceType  `json:"hold_piece"`             // 空なら nil
	HoldUsed           bool               `json:"hold_used"`              // 現在のピースでホールド済みか
	NextPieces         []tetris.PieceType `json:"next_pieces"`            // 先頭が次に出るピース
	Score              int                `json:"score"`
	Level              int                `json:"level"`
	Lines              int                `json:"lines"`
	Combo              int                `json:"combo"`                  // コンボ中でなければ ComboInactive
	HighScore          int                `json:"high_score"`
	ClearingRows       []int              `json:"clearing_rows"`          // clearing 中のみ空でない
	LastClearWasTetris bool               `json:"last_clear_was_tetris"`
}

// Preview は NEXT 表示用に先頭 PreviewSize 個のピースを返します。
func (s GameState) Preview() []tetris.PieceType {
	if len(s.NextPieces) <= PreviewSize {
		return s.NextPieces
	}
	return s.NextPieces[:PreviewSize]
}

// Ghost は現在のピースをそのまま落とした場合の着地位置を返します。
// ピースがない場合や、すでに着地位置にいる場合は nil を返します。
func (s GameState) Ghost() *tetris.Position {
	if s.CurrentPiece == nil {
		return nil
	}
	pos := s.Board.GhostPosition(*s.CurrentPiece)
	if pos.Row == s.CurrentPiece.Row {
		return nil
	}
	return &pos
}

// clone はスライスやポインタを複製して、エンジン内部と共有しないスナップショットを作ります。
func (s GameState) clone() GameState {
	out := s
	if s.CurrentPiece != nil {
		p := *s.CurrentPiece
		out.CurrentPiece = &p
	}
	if s.HoldPiece != nil {
		h := *s.HoldPiece
		out.HoldPiece = &h
	}
	out.NextPieces = append([]tetris.PieceType(nil), s.NextPieces...)
	out.ClearingRows = append([]int{}, s.ClearingRows...)
	return out
}

// newGameState はタイトル画面の初期状態を返します。
func newGameState(highScore int) GameState {
	return GameState{
		Phase:        PhaseStart,
		Board:        tetris.NewBoard(),
		Combo:        ComboInactive,
		HighScore:    highScore,
		ClearingRows: []int{},
	}
}
