package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models"
)

// fakeResultRepository はメモリ上で結果を保持する ResultRepository です。
type fakeResultRepository struct {
	results []models.Result
	err     error
}

func (f *fakeResultRepository) CreateResult(userID string, score int) (*models.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := models.Result{ID: int64(len(f.results) + 1), UserID: userID, Score: score, CreatedAt: time.Now()}
	f.results = append(f.results, r)
	return &r, nil
}

func (f *fakeResultRepository) GetTopResults(limit int) ([]models.RankedResult, error) {
	return nil, f.err
}

func (f *fakeResultRepository) GetUserBestScore(userID string) (*models.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	var best *models.Result
	for i := range f.results {
		r := f.results[i]
		if r.UserID != userID {
			continue
		}
		if best == nil || r.Score > best.Score {
			best = &r
		}
	}
	return best, nil
}

func (f *fakeResultRepository) GetUserRanking(userID string) (*models.RankedResult, error) {
	return nil, f.err
}

func TestResultHighScoreStore_LoadWithoutResults(t *testing.T) {
	store := NewResultHighScoreStore(&fakeResultRepository{}, "user-1")
	score, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestResultHighScoreStore_SaveThenLoadIsPerUser(t *testing.T) {
	repo := &fakeResultRepository{}
	alice := NewResultHighScoreStore(repo, "alice")
	bob := NewResultHighScoreStore(repo, "bob")

	require.NoError(t, alice.Save(1200))
	require.NoError(t, alice.Save(800))
	require.NoError(t, bob.Save(300))

	score, err := alice.Load()
	require.NoError(t, err)
	assert.Equal(t, 1200, score)

	score, err = bob.Load()
	require.NoError(t, err)
	assert.Equal(t, 300, score)
	assert.Len(t, repo.results, 2, "自己ベストを超えない Save は記録しない")
}

func TestResultHighScoreStore_PropagatesErrors(t *testing.T) {
	boom := errors.New("connection refused")
	store := NewResultHighScoreStore(&fakeResultRepository{err: boom}, "user-1")

	_, err := store.Load()
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.Save(10), boom)
}

func TestFileHighScoreStore_MissingFileLoadsZero(t *testing.T) {
	store, err := NewFileHighScoreStore(t.TempDir())
	require.NoError(t, err)

	score, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestFileHighScoreStore_SaveAndReload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	store, err := NewFileHighScoreStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, highScoreFileName), store.Location())

	require.NoError(t, store.Save(4200))

	reopened, err := NewFileHighScoreStore(dir)
	require.NoError(t, err)
	score, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, 4200, score)

	_, err = os.Stat(store.Location() + ".tmp")
	assert.True(t, os.IsNotExist(err), "一時ファイルは残らない")
}

func TestFileHighScoreStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileHighScoreStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Location(), []byte("{not json"), 0o644))

	_, err = store.Load()
	assert.Error(t, err)
}

func TestMemoryHighScoreStore(t *testing.T) {
	store := NewMemoryHighScoreStore(50)
	score, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 50, score)

	require.NoError(t, store.Save(75))
	score, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, 75, score)
}

func TestOpenLocalHighScoreStore_UsesFile(t *testing.T) {
	dir := t.TempDir()
	store := OpenLocalHighScoreStore(dir)
	require.IsType(t, &FileHighScoreStore{}, store)
	assert.Equal(t, filepath.Join(dir, highScoreFileName), store.Location())
}

func TestOpenLocalHighScoreStore_FallsBackToMemory(t *testing.T) {
	// 通常ファイルの下にはディレクトリを作れない
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	store := OpenLocalHighScoreStore(filepath.Join(blocker, "scores"))
	require.IsType(t, &MemoryHighScoreStore{}, store)
	assert.Equal(t, "memory", store.Location())

	require.NoError(t, store.Save(900))
	score, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 900, score)
}
