package tetris

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestApplyPlayerInput_MoveLeft はピースの左移動をテストします。
func TestApplyPlayerInput_MoveLeft(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.Start()
	initialCol := e.State().CurrentPiece.Col

	moved, err := ApplyPlayerInput(e, "move_left")
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, initialCol-1, e.State().CurrentPiece.Col)
}

// TestApplyPlayerInput_MoveRight はピースの右移動と壁との衝突をテストします。
func TestApplyPlayerInput_MoveRight(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.Start()

	for {
		moved, err := ApplyPlayerInput(e, "move_right")
		require.NoError(t, err)
		if !moved {
			break
		}
	}
	// 右の壁に接している
	piece := e.State().CurrentPiece
	maxCol := 0
	for _, c := range piece.Cells() {
		if c.Col > maxCol {
			maxCol = c.Col
		}
	}
	assert.Equal(t, 9, maxCol)
}

// TestApplyPlayerInput_Rotate は回転アクションの別名をテストします。
func TestApplyPlayerInput_Rotate(t *testing.T) {
	for _, action := range []string{"rotate", "rotate_right"} {
		e, _ := newTestEngine(t, nil)
		e.Start()
		before := e.State().CurrentPiece.Rotation

		moved, err := ApplyPlayerInput(e, action)
		require.NoError(t, err)
		assert.True(t, moved, action)
		assert.Equal(t, (before+1)%4, e.State().CurrentPiece.Rotation, action)
	}

	e, _ := newTestEngine(t, nil)
	e.Start()
	moved, err := ApplyPlayerInput(e, "rotate_left")
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, 3, e.State().CurrentPiece.Rotation)
}

// TestApplyPlayerInput_SoftDrop はソフトドロップをテストします。
func TestApplyPlayerInput_SoftDrop(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.Start()
	row := e.State().CurrentPiece.Row

	moved, err := ApplyPlayerInput(e, "soft_drop")
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, row+1, e.State().CurrentPiece.Row)
}

// TestApplyPlayerInput_HardDrop はハードドロップで次のピースに進むことをテストします。
func TestApplyPlayerInput_HardDrop(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.Start()
	next := e.State().NextPieces[0]

	moved, err := ApplyPlayerInput(e, "hard_drop")
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, next, e.State().CurrentPiece.Type)
	assert.Greater(t, e.State().Score, 0)
}

// TestApplyPlayerInput_Hold はホールドをテストします。
func TestApplyPlayerInput_Hold(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.Start()

	moved, err := ApplyPlayerInput(e, "hold")
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = ApplyPlayerInput(e, "hold")
	require.NoError(t, err)
	assert.False(t, moved, "2回連続のホールドは拒否される")
}

// TestApplyPlayerInput_PauseStartMenu はフェーズを切り替えるアクションをテストします。
func TestApplyPlayerInput_PauseStartMenu(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	changed, err := ApplyPlayerInput(e, "start")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, PhasePlaying, e.State().Phase)

	changed, err = ApplyPlayerInput(e, "pause")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, PhasePaused, e.State().Phase)

	changed, err = ApplyPlayerInput(e, "move_left")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = ApplyPlayerInput(e, "pause")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, PhasePlaying, e.State().Phase)

	changed, err = ApplyPlayerInput(e, "menu")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, PhaseStart, e.State().Phase)
}

// TestApplyPlayerInput_UnknownAction は未知のアクションがエラーになることをテストします。
func TestApplyPlayerInput_UnknownAction(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.Start()
	before := e.State()

	moved, err := ApplyPlayerInput(e, "teleport")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.False(t, moved)
	assert.Equal(t, before, e.State())
}
