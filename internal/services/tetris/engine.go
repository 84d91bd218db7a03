package tetris

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models/tetris"
)

// HighScoreStore はハイスコアの読み書きを行う外部ストレージです。
// 読み込みに失敗した場合は「保存された値なし」として扱い、ゲームには影響させません。
type HighScoreStore interface {
	Load() (int, error)
	Save(score int) error
}

// EngineConfig は NewEngine に渡す依存関係です。ゼロ値のフィールドには既定値が使われます。
type EngineConfig struct {
	HighScores HighScoreStore // nil の場合は永続化しない
	Clock      Clock          // nil の場合は RealClock
	Rand       *rand.Rand     // nil の場合は現在時刻をシードにする
}

// Engine は1人分のテトリスの状態機械です。
// 状態はすべてこの構造体が所有し、すべての遷移は mu の下で直列に実行されます。
// タイマーのコールバックは発行時のトークンを持ち、トークンが古ければ何もしません。
type Engine struct {
	mu    sync.Mutex
	state GameState
	clock Clock
	store HighScoreStore
	bag   *tetris.Bag

	lastActionWasRotation bool // 直前の成功した操作が回転だったか (T-スピン判定用)
	lockResets            int  // 現在のピースでロック遅延をリセットした回数

	tokens       uint64 // タイマートークンの発行元。0 は「未設定」を表す
	gravityTimer Timer
	gravityToken uint64
	lockTimer    Timer
	lockToken    uint64
	clearTimer   Timer
	clearToken   uint64

	listeners      map[int]Listener
	nextListenerID int

	pending     []Event // ロック解放後に通知するイベント
	pendingSave *int    // ロック解放後に保存するハイスコア
}

// NewEngine は新しいエンジンをタイトル画面の状態で作成します。
// ハイスコアはこの時点でストアから読み込まれます。
func NewEngine(cfg EngineConfig) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock
	}
	e := &Engine{
		clock:     clock,
		store:     cfg.HighScores,
		bag:       tetris.NewBag(cfg.Rand),
		listeners: make(map[int]Listener),
	}
	highScore, _ := e.loadHighScore()
	e.state = newGameState(highScore)
	return e
}

// State は現在の状態のスナップショットを返します。
func (e *Engine) State() GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Subscribe はイベントの購読者を登録し、購読を解除する関数を返します。
// 購読者はエンジンのロック外で、イベントが発生したゴルーチンから呼ばれます。
func (e *Engine) Subscribe(l Listener) func() {
	e.mu.Lock()
	id := e.nextListenerID
	e.nextListenerID++
	e.listeners[id] = l
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Start はどのフェーズからでも新しいゲームを開始します。
func (e *Engine) Start() {
	loaded, ok := e.loadHighScore()
	e.run(func() bool {
		e.cancelAllTimers()
		highScore := e.state.HighScore
		if ok {
			highScore = loaded
		}
		e.bag.Reset()
		e.state = newGameState(highScore)
		e.state.Phase = PhasePlaying
		e.spawn(e.pullNext())
		e.startGravity()
		log.Printf("[Engine] Game started (high score: %d)", highScore)
		return true
	})
}

// ResetToMenu はどのフェーズからでもタイマーを止めてタイトル画面に戻ります。
func (e *Engine) ResetToMenu() {
	e.run(func() bool {
		e.cancelAllTimers()
		e.lastActionWasRotation = false
		e.lockResets = 0
		e.state = newGameState(e.state.HighScore)
		return true
	})
}

// TogglePause はプレイ中なら一時停止し、一時停止中ならプレイを再開します。
// 一時停止するとロック遅延は破棄され、再開時には復元されません。
func (e *Engine) TogglePause() bool {
	return e.run(func() bool {
		switch e.state.Phase {
		case PhasePlaying:
			e.cancelGravity()
			e.cancelLock()
			e.state.Phase = PhasePaused
			return true
		case PhasePaused:
			e.state.Phase = PhasePlaying
			e.startGravity()
			return true
		default:
			return false
		}
	})
}

// MoveLeft はピースを1列左に動かします。
func (e *Engine) MoveLeft() bool {
	return e.run(func() bool { return e.shift(-1) })
}

// MoveRight はピースを1列右に動かします。
func (e *Engine) MoveRight() bool {
	return e.run(func() bool { return e.shift(1) })
}

// RotateClockwise はピースを時計回りに回転させます。
func (e *Engine) RotateClockwise() bool {
	return e.run(func() bool { return e.rotate(true) })
}

// RotateCounterClockwise はピースを反時計回りに回転させます。
func (e *Engine) RotateCounterClockwise() bool {
	return e.run(func() bool { return e.rotate(false) })
}

// SoftDrop はピースを1段下げます。すでに接地している場合はロック遅延を開始するだけで、
// 即座に固定はしません。
func (e *Engine) SoftDrop() bool {
	return e.run(func() bool {
		if !e.playable() {
			return false
		}
		moved, ok := e.state.CurrentPiece.Translate(&e.state.Board, 1, 0)
		if !ok {
			if e.lockToken == 0 {
				e.startLockDelay()
			}
			return false
		}
		e.setPiece(moved)
		e.state.Score += SoftDropPoints
		e.lastActionWasRotation = false
		if moved.IsResting(&e.state.Board) {
			e.startLockDelay()
		}
		e.emit(Event{Type: EventSoftDrop})
		return true
	})
}

// HardDrop はピースを一番下まで落とし、ロック遅延なしで即座に固定します。
func (e *Engine) HardDrop() bool {
	return e.run(func() bool {
		if !e.playable() {
			return false
		}
		current := *e.state.CurrentPiece
		target := current.HardDropTarget(&e.state.Board)
		rows := target.Row - current.Row
		e.state.Score += rows * HardDropPoints
		// 回転フラグはそのまま残し、回転してから落とした T をT-スピンとして扱う
		e.setPiece(target)
		e.emit(Event{Type: EventHardDrop, Rows: rows})
		e.lock()
		return true
	})
}

// Hold は現在のピースをホールドします。ピースが固定されるまでに2回目のホールドはできません。
func (e *Engine) Hold() bool {
	return e.run(func() bool {
		if !e.playable() || e.state.HoldUsed {
			return false
		}
		held := e.state.CurrentPiece.Type
		previous := e.state.HoldPiece
		e.state.HoldPiece = &held

		var next tetris.PieceType
		if previous != nil {
			next = *previous
		} else {
			next = e.pullNext()
		}
		e.cancelLock()
		e.spawn(next)
		e.state.HoldUsed = true

		e.emit(Event{Type: EventHold, Piece: &held})
		return true
	})
}

// run は遷移を mu の下で実行し、ロック解放後にハイスコアの保存とイベント通知を行います。
func (e *Engine) run(transition func() bool) bool {
	e.mu.Lock()
	changed := transition()
	if changed {
		e.emit(Event{Type: EventStateChanged})
	}
	events := e.pending
	e.pending = nil
	save := e.pendingSave
	e.pendingSave = nil
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.mu.Unlock()

	if save != nil {
		e.saveHighScore(*save)
	}
	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
	return changed
}

func (e *Engine) emit(ev Event) {
	e.pending = append(e.pending, ev)
}

func (e *Engine) playable() bool {
	return e.state.Phase == PhasePlaying && e.state.CurrentPiece != nil
}

func (e *Engine) setPiece(p tetris.Piece) {
	e.state.CurrentPiece = &p
}

// spawn は新しいピースを出現させ、ピースごとの状態をリセットします。
func (e *Engine) spawn(t tetris.PieceType) {
	e.setPiece(tetris.Spawn(t))
	e.lockResets = 0
	e.lastActionWasRotation = false
}

// fillQueue はNEXTキューを PreviewSize+1 個以上に保ちます。
func (e *Engine) fillQueue() {
	for len(e.state.NextPieces) < PreviewSize+1 {
		e.state.NextPieces = append(e.state.NextPieces, e.bag.Next())
	}
}

// pullNext はNEXTキューの先頭を取り出します。
func (e *Engine) pullNext() tetris.PieceType {
	e.fillQueue()
	next := e.state.NextPieces[0]
	e.state.NextPieces = append([]tetris.PieceType(nil), e.state.NextPieces[1:]...)
	e.fillQueue()
	return next
}

func (e *Engine) shift(dCol int) bool {
	if !e.playable() {
		return false
	}
	moved, ok := e.state.CurrentPiece.Translate(&e.state.Board, 0, dCol)
	if !ok {
		return false
	}
	e.setPiece(moved)
	e.lastActionWasRotation = false
	e.refreshLockDelay()
	e.emit(Event{Type: EventMove})
	return true
}

func (e *Engine) rotate(clockwise bool) bool {
	if !e.playable() {
		return false
	}
	rotated, ok := e.state.CurrentPiece.Rotate(&e.state.Board, clockwise)
	if !ok {
		return false
	}
	e.setPiece(rotated)
	e.lastActionWasRotation = true
	e.refreshLockDelay()
	e.emit(Event{Type: EventRotate})
	return true
}

// refreshLockDelay は移動・回転の後に呼ばれます。
// 接地していればロック遅延をリセットし、浮いていればロック遅延を取り消します。
func (e *Engine) refreshLockDelay() {
	if !e.state.CurrentPiece.IsResting(&e.state.Board) {
		e.cancelLock()
		return
	}
	if e.lockToken == 0 {
		e.startLockDelay()
		return
	}
	if e.lockResets >= MaxLockResets {
		return // 上限に達したら現在のタイマーをそのまま満了させる
	}
	e.lockResets++
	e.startLockDelay()
}

// lock は現在のピースをボードに固定し、ライン消去またはゲームオーバーを判定します。
func (e *Engine) lock() {
	current := *e.state.CurrentPiece
	e.cancelLock()

	tSpin := IsTSpin(&e.state.Board, current, e.lastActionWasRotation)
	stamped := e.state.Board.Place(current)
	rows := stamped.FindFullRows()
	if tSpin {
		e.emit(Event{Type: EventTSpin, Lines: len(rows)})
	}

	e.state.Board = stamped
	e.state.CurrentPiece = nil
	e.state.HoldUsed = false

	if len(rows) == 0 {
		e.state.Combo = ComboInactive
		if stamped.IsOverflowed() {
			e.gameOver()
			return
		}
		e.spawn(e.pullNext())
		return
	}

	e.cancelGravity()
	combo := e.state.Combo + 1
	oldLevel := e.state.Level
	e.state.Score += LineScore(len(rows), oldLevel, tSpin, combo)
	e.state.Lines += len(rows)
	e.state.Level = LevelFromLines(e.state.Lines)
	e.state.Combo = combo
	if e.state.Score > e.state.HighScore {
		e.state.HighScore = e.state.Score
	}
	e.state.ClearingRows = rows
	e.state.LastClearWasTetris = len(rows) == 4
	e.state.Phase = PhaseClearing

	e.emit(Event{Type: EventLineClear, Lines: len(rows)})
	if combo > 0 {
		e.emit(Event{Type: EventCombo, Combo: combo})
	}
	if e.state.Level > oldLevel {
		e.emit(Event{Type: EventLevelUp, Level: e.state.Level})
	}

	token := e.newToken()
	e.clearToken = token
	e.clearTimer = e.clock.AfterFunc(ClearAnimation, func() { e.onClearFinished(token) })
}

// onClearFinished はライン消去アニメーション後の続きです。
// その間にリセットなどで状態が変わっていれば何もしません。
func (e *Engine) onClearFinished(token uint64) {
	e.run(func() bool {
		if token != e.clearToken || e.state.Phase != PhaseClearing {
			return false
		}
		e.clearToken = 0
		e.clearTimer = nil

		e.state.Board = e.state.Board.Collapse(e.state.ClearingRows)
		e.state.ClearingRows = []int{}
		next := e.pullNext()
		if e.state.Board.IsOverflowed() {
			e.gameOver()
			return true
		}
		e.state.Phase = PhasePlaying
		e.spawn(next)
		e.startGravity()
		return true
	})
}

func (e *Engine) gameOver() {
	e.cancelAllTimers()
	e.state.CurrentPiece = nil
	e.state.Phase = PhaseGameOver
	if e.state.Score > e.state.HighScore {
		e.state.HighScore = e.state.Score
	}
	highScore := e.state.HighScore
	e.pendingSave = &highScore
	e.emit(Event{Type: EventGameOver, Score: e.state.Score})
	log.Printf("[Engine] Game over (score: %d, lines: %d, level: %d)", e.state.Score, e.state.Lines, e.state.Level)
}

// --- タイマー ---

func (e *Engine) newToken() uint64 {
	e.tokens++
	return e.tokens
}

// startGravity はロック遅延を取り消し、現在のレベルの間隔で自動落下を開始し直します。
func (e *Engine) startGravity() {
	e.cancelGravity()
	e.cancelLock()
	e.scheduleGravity()
}

func (e *Engine) scheduleGravity() {
	token := e.newToken()
	e.gravityToken = token
	e.gravityTimer = e.clock.AfterFunc(GetFallInterval(e.state.Level), func() { e.onGravity(token) })
}

func (e *Engine) onGravity(token uint64) {
	e.run(func() bool {
		if token != e.gravityToken || e.state.Phase != PhasePlaying {
			return false
		}
		e.gravityToken = 0
		changed := e.gravityTick()
		e.scheduleGravity()
		return changed
	})
}

// gravityTick はピースを1段落とします。落とせなければロック遅延を開始します。
func (e *Engine) gravityTick() bool {
	if e.state.CurrentPiece == nil {
		return false
	}
	moved, ok := e.state.CurrentPiece.Translate(&e.state.Board, 1, 0)
	if !ok {
		if e.lockToken == 0 {
			e.startLockDelay()
		}
		return false
	}
	e.setPiece(moved)
	e.lastActionWasRotation = false
	if moved.IsResting(&e.state.Board) {
		e.startLockDelay()
	}
	return true
}

// startLockDelay はロック遅延を新しく開始します。リセット回数には数えません。
func (e *Engine) startLockDelay() {
	e.cancelLock()
	token := e.newToken()
	e.lockToken = token
	e.lockTimer = e.clock.AfterFunc(LockDelay, func() { e.onLockDelay(token) })
}

func (e *Engine) onLockDelay(token uint64) {
	e.run(func() bool {
		if token != e.lockToken || !e.playable() {
			return false
		}
		e.lockToken = 0
		e.lockTimer = nil
		e.lock()
		return true
	})
}

func (e *Engine) cancelGravity() {
	if e.gravityTimer != nil {
		e.gravityTimer.Stop()
		e.gravityTimer = nil
	}
	e.gravityToken = 0
}

func (e *Engine) cancelLock() {
	if e.lockTimer != nil {
		e.lockTimer.Stop()
		e.lockTimer = nil
	}
	e.lockToken = 0
}

func (e *Engine) cancelClear() {
	if e.clearTimer != nil {
		e.clearTimer.Stop()
		e.clearTimer = nil
	}
	e.clearToken = 0
}

func (e *Engine) cancelAllTimers() {
	e.cancelGravity()
	e.cancelLock()
	e.cancelClear()
}

// LockDelayArmed はロック遅延のタイマーが動いているかどうかを返します。
func (e *Engine) LockDelayArmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lockToken != 0
}

// --- ハイスコア ---

func (e *Engine) loadHighScore() (int, bool) {
	if e.store == nil {
		return 0, false
	}
	score, err := e.store.Load()
	if err != nil {
		log.Printf("[HighScore] Failed to load high score: %v", err)
		return 0, false
	}
	return score, true
}

func (e *Engine) saveHighScore(score int) {
	if e.store == nil {
		return
	}
	start := time.Now()
	if err := e.store.Save(score); err != nil {
		log.Printf("[HighScore] Failed to save high score %d: %v", score, err)
		return
	}
	log.Printf("[HighScore] Saved high score %d (%v)", score, time.Since(start))
}
