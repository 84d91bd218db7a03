package tetris

import (
	"time"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"
)

// ゲームのルールに関する定数です。
const (
	PreviewSize       = 3                      // NEXTとして表示するピースの数
	LockDelay         = 500 * time.Millisecond // 接地してから固定されるまでの猶予
	MaxLockResets     = 15                     // 1ピースあたりのロック遅延リセット回数の上限
	ClearAnimation    = 400 * time.Millisecond // ライン消去アニメーションの長さ
	LinesPerLevel     = 10                     // レベルが1上がるのに必要なライン数
	SoftDropPoints    = 1                      // ソフトドロップ1段あたりの得点
	HardDropPoints    = 2                      // ハードドロップ1段あたりの得点
	ComboBonusPerStep = 50                     // コンボ1段あたりのボーナス
)

// 消去ライン数ごとの基本点です。
const (
	ScoreSingle      = 100
	ScoreDouble      = 300
	ScoreTriple      = 500
	ScoreTetris      = 800
	ScoreTSpinSingle = 800
	ScoreTSpinDouble = 1200
	ScoreTSpinTriple = 1600
)

// fallIntervalsMs はレベルごとの自動落下間隔（ミリ秒）です。
var fallIntervalsMs = [...]int{1000, 800, 650, 500, 400, 300, 200, 150, 100, 80, 70, 60, 55, 50, 50, 50, 45, 45, 40, 40}

const fastestFallIntervalMs = 35

// GetFallInterval はレベルに応じた自動落下の間隔を返します。
// テーブルより高いレベルでは最速の間隔になります。
func GetFallInterval(level int) time.Duration {
	if level < 0 {
		level = 0
	}
	if level >= len(fallIntervalsMs) {
		return fastestFallIntervalMs * time.Millisecond
	}
	return time.Duration(fallIntervalsMs[level]) * time.Millisecond
}

// LevelFromLines は累計消去ライン数からレベルを計算します。
func LevelFromLines(totalLines int) int {
	if totalLines < 0 {
		return 0
	}
	return totalLines / LinesPerLevel
}

// LineScore はライン消去1回分の得点を計算します。
//
// Parameters:
//   linesCleared : 同時に消去したライン数
//   level        : 消去前のレベル
//   isTSpin      : T-スピンかどうか
//   combo        : 今回の消去を含めたコンボ数 (最初の消去は 0)
// Returns:
//   int: 基本点 × (level+1) にコンボボーナスを加えた得点
func LineScore(linesCleared, level int, isTSpin bool, combo int) int {
	if linesCleared <= 0 {
		return 0
	}

	var base int
	if isTSpin {
		switch linesCleared {
		case 1:
			base = ScoreTSpinSingle
		case 2:
			base = ScoreTSpinDouble
		default:
			base = ScoreTSpinTriple
		}
	} else {
		switch linesCleared {
		case 1:
			base = ScoreSingle
		case 2:
			base = ScoreDouble
		case 3:
			base = ScoreTriple
		default:
			base = ScoreTetris
		}
	}

	score := base * (level + 1)
	if combo > 0 {
		score += ComboBonusPerStep * combo * (level + 1)
	}
	return score
}

// IsTSpin はピースの固定がT-スピンにあたるかどうかを判定します。
// Tミノで、直前の成功した操作が回転であり、3x3マスクの中心の四隅のうち
// 3つ以上が埋まっている（ボード外も埋まっているとみなす）場合に true です。
func IsTSpin(board *tetris.Board, piece tetris.Piece, lastActionWasRotation bool) bool {
	if piece.Type != tetris.TypeT || !lastActionWasRotation {
		return false
	}

	centerRow := piece.Row + 1
	centerCol := piece.Col + 1
	corners := [4][2]int{
		{centerRow - 1, centerCol - 1},
		{centerRow - 1, centerCol + 1},
		{centerRow + 1, centerCol - 1},
		{centerRow + 1, centerCol + 1},
	}

	occupied := 0
	for _, c := range corners {
		row, col := c[0], c[1]
		if row < 0 || row >= tetris.BoardTotalRows || col < 0 || col >= tetris.BoardWidth {
			occupied++
			continue
		}
		if board[row][col] != tetris.BlockEmpty {
			occupied++
		}
	}
	return occupied >= 3
}
