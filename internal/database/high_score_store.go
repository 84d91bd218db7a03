package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirsle/configdir"
)

// ResultHighScoreStore はユーザーごとのハイスコアを results テーブルで管理します。
// Load はそのユーザーの最高スコアを返し、Save は自己ベストを更新したときだけ1行追加します。
type ResultHighScoreStore struct {
	repo   ResultRepository
	userID string
}

// NewResultHighScoreStore は指定したユーザー用のストアを作成します。
func NewResultHighScoreStore(repo ResultRepository, userID string) *ResultHighScoreStore {
	return &ResultHighScoreStore{repo: repo, userID: userID}
}

func (s *ResultHighScoreStore) Load() (int, error) {
	best, err := s.repo.GetUserBestScore(s.userID)
	if err != nil {
		return 0, err
	}
	if best == nil {
		return 0, nil
	}
	return best.Score, nil
}

func (s *ResultHighScoreStore) Save(score int) error {
	best, err := s.Load()
	if err != nil {
		return err
	}
	if score <= best {
		return nil
	}
	_, err = s.repo.CreateResult(s.userID, score)
	return err
}

const (
	highScoreAppName  = "tetris-engine"
	highScoreFileName = "highscore.json"
)

type highScoreFile struct {
	HighScore int `json:"high_score"`
}

// FileHighScoreStore はローカルの JSON ファイルに1つのハイスコアを保存します。
// データベースが設定されていないときに使います。
type FileHighScoreStore struct {
	mu   sync.Mutex
	path string
}

// DefaultHighScoreDir は OS の設定ディレクトリ配下のハイスコア保存先を返します。
func DefaultHighScoreDir() string {
	return configdir.LocalConfig(highScoreAppName)
}

// NewFileHighScoreStore は dir 配下の highscore.json を使うストアを作成します。
// dir が空なら DefaultHighScoreDir を使います。
func NewFileHighScoreStore(dir string) (*FileHighScoreStore, error) {
	if dir == "" {
		dir = DefaultHighScoreDir()
	}
	if err := configdir.MakePath(dir); err != nil {
		return nil, fmt.Errorf("ハイスコア保存ディレクトリの作成に失敗しました: %w", err)
	}
	return &FileHighScoreStore{path: filepath.Join(dir, highScoreFileName)}, nil
}

// Load は保存済みのハイスコアを返します。ファイルがなければ 0 です。
func (s *FileHighScoreStore) Load() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ハイスコアファイルの読み込みに失敗しました: %w", err)
	}

	var f highScoreFile
	if err := json.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("ハイスコアファイルの解析に失敗しました: %w", err)
	}
	return f.HighScore, nil
}

// Save はハイスコアを一時ファイル経由で書き込みます。
func (s *FileHighScoreStore) Save(score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(highScoreFile{HighScore: score})
	if err != nil {
		return fmt.Errorf("ハイスコアのエンコードに失敗しました: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("ハイスコアファイルの書き込みに失敗しました: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("ハイスコアファイルの置き換えに失敗しました: %w", err)
	}
	return nil
}

// LocalHighScoreStore はデータベースを使わないハイスコアの保存先です。
type LocalHighScoreStore interface {
	Load() (int, error)
	Save(score int) error
	Location() string
}

// OpenLocalHighScoreStore は dir 配下のファイルストアを開きます。
// ディレクトリが作れない場合（読み取り専用の環境など）はメモリ上のストアを返します。
func OpenLocalHighScoreStore(dir string) LocalHighScoreStore {
	store, err := NewFileHighScoreStore(dir)
	if err != nil {
		log.Printf("[HighScore] %v; falling back to in-memory high scores", err)
		return NewMemoryHighScoreStore(0)
	}
	return store
}

// Location は保存先ファイルのパスを返します。
func (s *FileHighScoreStore) Location() string {
	return s.path
}

// MemoryHighScoreStore はプロセス内だけで値を保持するストアです。
// プロセスが終了するとハイスコアは失われます。
type MemoryHighScoreStore struct {
	mu    sync.Mutex
	score int
}

func NewMemoryHighScoreStore(initial int) *MemoryHighScoreStore {
	return &MemoryHighScoreStore{score: initial}
}

func (s *MemoryHighScoreStore) Location() string {
	return "memory"
}

func (s *MemoryHighScoreStore) Load() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, nil
}

func (s *MemoryHighScoreStore) Save(score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = score
	return nil
}
