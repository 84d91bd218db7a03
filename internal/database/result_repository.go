package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/tetris-engine/internal/models"
)

// ResultRepository はゲーム結果関連のデータベース操作を定義するインターフェースです。
type ResultRepository interface {
	// CreateResult は1回のゲームの最終スコアを記録します
	CreateResult(userID string, score int) (*models.Result, error)

	// GetTopResults はユーザーごとの自己ベストで上位N件を取得します（ランキング用）
	GetTopResults(limit int) ([]models.RankedResult, error)

	// GetUserBestScore は指定したユーザーの最高スコアを取得します。記録がなければ nil です
	GetUserBestScore(userID string) (*models.Result, error)

	// GetUserRanking は指定したユーザーの自己ベストとその順位を取得します。記録がなければ nil です
	GetUserRanking(userID string) (*models.RankedResult, error)
}

// resultRepositoryImpl はResultRepositoryインターフェースのPostgreSQL実装です。
type resultRepositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

// NewResultRepository はResultRepositoryの新しいインスタンスを作成します。
func NewResultRepository(db *sql.DB) ResultRepository {
	return &resultRepositoryImpl{db: db, now: time.Now}
}

// CreateResult は新しいゲーム結果レコードを作成します。
func (r *resultRepositoryImpl) CreateResult(userID string, score int) (*models.Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("ユーザーIDが空です")
	}
	createdAt := r.now()

	var id int64
	err := r.db.QueryRow(
		"INSERT INTO results (user_id, score, created_at) VALUES ($1, $2, $3) RETURNING id",
		userID, score, createdAt,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("ゲーム結果レコードの作成に失敗しました: %w", err)
	}

	return &models.Result{
		ID:        id,
		UserID:    userID,
		Score:     score,
		CreatedAt: createdAt,
	}, nil
}

// GetTopResults はユーザーごとの自己ベストを並べ、上位N件を返します。
// 同点の場合は先に記録した方が上位です。
func (r *resultRepositoryImpl) GetTopResults(limit int) ([]models.RankedResult, error) {
	query := `
		SELECT id, user_id, score, created_at,
			ROW_NUMBER() OVER (ORDER BY score DESC, created_at ASC) AS rank
		FROM (
			SELECT DISTINCT ON (user_id) id, user_id, score, created_at
			FROM results
			ORDER BY user_id, score DESC, created_at ASC
		) best
		ORDER BY score DESC, created_at ASC
		LIMIT $1
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("ランキングの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	results := []models.RankedResult{}
	for rows.Next() {
		var result models.RankedResult
		if err := rows.Scan(&result.ID, &result.UserID, &result.Score, &result.CreatedAt, &result.Rank); err != nil {
			return nil, fmt.Errorf("ランキングデータのスキャンに失敗しました: %w", err)
		}
		results = append(results, result)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ランキング取得中にエラーが発生しました: %w", err)
	}

	return results, nil
}

// GetUserBestScore は指定したユーザーの最高スコアを取得します。
func (r *resultRepositoryImpl) GetUserBestScore(userID string) (*models.Result, error) {
	query := `
		SELECT id, user_id, score, created_at
		FROM results
		WHERE user_id = $1
		ORDER BY score DESC, created_at ASC
		LIMIT 1
	`

	var result models.Result
	err := r.db.QueryRow(query, userID).Scan(&result.ID, &result.UserID, &result.Score, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの最高スコア取得に失敗しました: %w", err)
	}
	return &result, nil
}

// GetUserRanking は指定したユーザーの自己ベストが、全ユーザーの自己ベストの中で何位かを返します。
func (r *resultRepositoryImpl) GetUserRanking(userID string) (*models.RankedResult, error) {
	best, err := r.GetUserBestScore(userID)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, nil
	}

	// 自分より上にいるユーザーの数 + 1 が順位
	query := `
		SELECT COUNT(*) + 1
		FROM (
			SELECT user_id, MAX(score) AS score
			FROM results
			WHERE user_id <> $1
			GROUP BY user_id
		) others
		WHERE others.score > $2
	`

	var rank int
	if err := r.db.QueryRow(query, userID, best.Score).Scan(&rank); err != nil {
		return nil, fmt.Errorf("ユーザーランキング順位の計算に失敗しました: %w", err)
	}

	return &models.RankedResult{Result: *best, Rank: rank}, nil
}
